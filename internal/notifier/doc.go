// Package notifier renders reconciled rows as a newsletter digest and sends
// it somewhere.
//
// FormatDigest groups rows by day in markdown. DryRunNotifier prints the
// digest instead of sending it, WebhookNotifier posts it as a chat message
// payload and TelegramNotifier sends it through the Telegram Bot API. Multi
// fans one digest out to several notifiers.
package notifier
