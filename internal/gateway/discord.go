package gateway

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// maxDiscordMessage is Discord's limit on message content length.
const maxDiscordMessage = 2000

type DiscordGateway struct {
	Session  *discordgo.Session
	Commands *Commands
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewDiscordGateway(token string, commands *Commands) (*DiscordGateway, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentMessageContent

	ctx, cancel := context.WithCancel(context.Background())
	dg := &DiscordGateway{
		Session:  session,
		Commands: commands,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	session.AddHandler(dg.onMessage)
	return dg, nil
}

// Start opens the websocket and blocks until Stop is called.
func (dg *DiscordGateway) Start() error {
	if err := dg.Session.Open(); err != nil {
		return fmt.Errorf("discord open failed: %w", err)
	}
	log.Printf("Authorized on discord as %s", dg.Session.State.User.Username)
	<-dg.done
	return nil
}

func (dg *DiscordGateway) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || (s.State.User != nil && m.Author.ID == s.State.User.ID) {
		return
	}
	if !strings.HasPrefix(strings.TrimSpace(m.Content), "/") {
		return
	}

	log.Printf("[discord:%s] %s", m.Author.Username, m.Content)

	response := dg.Commands.Handle(dg.ctx, qualify(PrefixDiscord, m.ChannelID), m.Content)
	if _, err := s.ChannelMessageSend(m.ChannelID, truncate(response, maxDiscordMessage)); err != nil {
		log.Printf("Error replying on discord: %v", err)
	}
}

func (dg *DiscordGateway) Send(chatID string, text string) error {
	prefix, channelID, ok := splitChatID(chatID)
	if !ok || prefix != PrefixDiscord {
		return fmt.Errorf("invalid chat ID: %s", chatID)
	}
	_, err := dg.Session.ChannelMessageSend(channelID, truncate(text, maxDiscordMessage))
	return err
}

func (dg *DiscordGateway) Stop() error {
	select {
	case <-dg.done:
		return nil
	default:
	}
	dg.cancel()
	close(dg.done)
	return dg.Session.Close()
}
