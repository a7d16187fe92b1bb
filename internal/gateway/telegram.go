package gateway

import (
	"context"
	"fmt"
	"log"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// maxTelegramMessage is Telegram's limit on message text length.
const maxTelegramMessage = 4096

type TelegramGateway struct {
	Bot      *tgbotapi.BotAPI
	Commands *Commands
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewTelegramGateway(token string, commands *Commands) (*TelegramGateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Printf("Authorized on account %s", bot.Self.UserName)

	ctx, cancel := context.WithCancel(context.Background())
	return &TelegramGateway{
		Bot:      bot,
		Commands: commands,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

func (tg *TelegramGateway) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := tg.Bot.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}

		log.Printf("[telegram:%s] %s", senderName(update.Message), update.Message.Text)

		chatID := qualify(PrefixTelegram, strconv.FormatInt(update.Message.Chat.ID, 10))
		response := tg.Commands.Handle(tg.ctx, chatID, update.Message.Text)

		msg := tgbotapi.NewMessage(update.Message.Chat.ID, truncate(response, maxTelegramMessage))
		if _, err := tg.Bot.Send(msg); err != nil {
			log.Printf("Error replying on telegram: %v", err)
		}
	}
	return nil
}

func (tg *TelegramGateway) Send(chatID string, text string) error {
	prefix, raw, ok := splitChatID(chatID)
	if !ok || prefix != PrefixTelegram {
		return fmt.Errorf("invalid chat ID: %s", chatID)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("invalid chat ID: %s", chatID)
	}

	msg := tgbotapi.NewMessage(id, truncate(text, maxTelegramMessage))
	_, err = tg.Bot.Send(msg)
	return err
}

func (tg *TelegramGateway) Stop() error {
	tg.cancel()
	tg.Bot.StopReceivingUpdates()
	return nil
}

// senderName names the author of m. From is nil for channel posts and
// anonymous group admins.
func senderName(m *tgbotapi.Message) string {
	if m.From != nil {
		return m.From.UserName
	}
	if m.SenderChat != nil {
		return m.SenderChat.Title
	}
	return "unknown"
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
