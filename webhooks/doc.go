// Package webhooks signs, verifies and dispatches webhook deliveries.
//
// Inbound deliveries are signature-checked against the registration secret
// and handed to the registered handler under a bounded retry loop where each
// attempt races a deadline. Outbound deliveries serialize the envelope once,
// sign exactly those bytes and POST them through a core.TransportAdapter.
// Every attempt is appended to a DeliveryLog.
package webhooks
