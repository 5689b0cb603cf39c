package tzroom

import "context"

// Transport is what the room layer needs from the connection gateway. All
// methods except Count must be called on the gateway's event loop; Join and
// Leave deliver their membership callbacks before returning.
type Transport interface {
	GroupView
	Join(connID, group string)
	Leave(connID, group string)
	Members(group string) []string
	HasGroup(group string) bool
	SendTo(connID, event string, data interface{}) error
	SendToGroup(group, event string, data interface{})
	// Go runs work off the loop and posts the returned continuation back.
	Go(work func(ctx context.Context) func())
	Count() int
}
