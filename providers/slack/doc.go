// Package slack is the chat notification reference adapter.
//
// Initialize and HealthCheck verify the bot token with auth.test. Inbound
// Events API and interactivity payloads are routed by type to the hooks set
// on Config; outbound messages go through chat.postMessage.
package slack
