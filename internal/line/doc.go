// Package line implements the messaging platform boundary: webhook signature
// verification and event parsing on the inbound side, and the reply/push/
// content APIs on the outbound side.
package line
