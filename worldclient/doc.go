// Package worldclient implements the Client<-World Request Multiplexer:
// a single connection that issues snapshot, range, and streaming queries
// to the world model and routes its ticketed, asynchronous responses
// back to independent Response/StepResponse handles.
//
// Each request gets a monotonically increasing Ticket and a requestSlot
// holding an unbounded per-ticket queue: the receive loop is the only
// producer, the owning handle is the only consumer, and a slow consumer
// on one ticket can never block delivery to any other ticket sharing the
// same connection.
package worldclient
