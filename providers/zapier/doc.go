// Package zapier is the automation trigger reference adapter.
//
// Inbound Zap actions are translated into structured records without
// persisting anything. REST hook subscriptions become outbound dispatcher
// registrations and TriggerEvent fans a signed payload out to them.
package zapier
