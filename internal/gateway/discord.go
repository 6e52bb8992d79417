package gateway

import (
	"context"
	"log"

	"github.com/bwmarrin/discordgo"
	"github.com/rahul/tally/internal/agent"
)

const discordMessageLimit = 2000

type DiscordGateway struct {
	Session   *discordgo.Session
	Responder *Responder
}

func NewDiscordGateway(token string, brain agent.Brain) (*DiscordGateway, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	s.Identify.Intents = discordgo.IntentGuildMessages |
		discordgo.IntentDirectMessages |
		discordgo.IntentMessageContent

	return &DiscordGateway{
		Session:   s,
		Responder: NewResponder(brain),
	}, nil
}

func (dg *DiscordGateway) Start(ctx context.Context) error {
	remove := dg.Session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.Bot {
			return
		}
		if s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID {
			return
		}

		log.Printf("[%s] %s", m.Author.Username, m.Content)

		response := dg.Responder.Reply(ctx, m.ChannelID, m.Content)
		if response == "" {
			return
		}
		if err := dg.Send(m.ChannelID, response); err != nil {
			log.Printf("Error sending reply: %v", err)
		}
	})
	defer remove()

	if err := dg.Session.Open(); err != nil {
		return err
	}
	log.Printf("Discord gateway connected")

	<-ctx.Done()
	return nil
}

func (dg *DiscordGateway) Send(channelID string, text string) error {
	for _, part := range chunk(text, discordMessageLimit) {
		if _, err := dg.Session.ChannelMessageSend(channelID, part); err != nil {
			return err
		}
	}
	return nil
}

func (dg *DiscordGateway) Stop() error {
	return dg.Session.Close()
}
