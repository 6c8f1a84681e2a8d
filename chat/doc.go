// Package chat defines the chat platform abstraction shared by the feature modules.
//
// A Client connects to one platform (Telegram or Twitch chat), delivers inbound
// messages to a Router and exposes the two operations the broadcaster needs:
// resolving a channel identifier to a postable Channel and sending text to it.
// Module replies use a small markup subset (**bold** and [label](url)) that each
// adapter renders for its platform with RenderHTML or RenderPlain.
package chat
