// Package telegram sends text messages through the Telegram Bot API using
// telebot. Each message carries its own bot token and chat id.
//
//	client := telegram.NewClient(telegram.Config{Timeout: 10 * time.Second})
//	err := client.SendMessage(ctx, telegram.Message{
//	    Token:  "123456:ABC-DEF",
//	    ChatID: "-1001234567890",
//	    Text:   "<b>hello</b>",
//	})
package telegram
