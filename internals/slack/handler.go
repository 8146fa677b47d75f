package slack

import (
	"context"
	"log/slog"
	"strings"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

// Worker runs one request through an agent and returns its reply.
type Worker interface {
	Handle(ctx context.Context, agentName, request string) (string, error)
}

type IncomingMessage struct {
	ThreadTS  string // empty if this is the root message
	ChannelID string
	UserID    string
	Text      string
	IsDM      bool
}

// Handler is the Socket Mode front end: mentions and direct messages become
// requests, and the reply is posted back into the thread.
type Handler struct {
	client    *slack.Client
	socket    *socketmode.Client
	botID     string
	agentName string
	worker    Worker
	log       *slog.Logger
}

func NewHandler(botToken, appToken, agentName string, worker Worker, log *slog.Logger) (*Handler, error) {
	api := slack.New(
		botToken,
		slack.OptionAppLevelToken(appToken),
	)

	socket := socketmode.New(
		api,
		socketmode.OptionLog(slog.NewLogLogger(log.Handler(), slog.LevelDebug)),
	)

	// Resolve the bot's own user ID so we can strip mentions from message text.
	authResp, err := api.AuthTest()
	if err != nil {
		return nil, err
	}

	return &Handler{
		client:    api,
		socket:    socket,
		botID:     authResp.UserID,
		agentName: agentName,
		worker:    worker,
		log:       log,
	}, nil
}

// Run processes events until ctx is cancelled or the connection gives up.
// Requests are handled one at a time.
func (h *Handler) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() { errc <- h.socket.RunContext(ctx) }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			if ctx.Err() != nil {
				return nil
			}
			return err
		case evt, ok := <-h.socket.Events:
			if !ok {
				return nil
			}
			h.handleEvent(ctx, evt)
		}
	}
}

func (h *Handler) handleEvent(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeEventsAPI:
		if evt.Request != nil {
			h.socket.Ack(*evt.Request)
		}
		h.handleEventsAPI(ctx, evt)
	case socketmode.EventTypeConnecting:
		h.log.Info("Connecting to slack")
	case socketmode.EventTypeConnected:
		h.log.Info("Connected to slack")
	case socketmode.EventTypeConnectionError:
		h.log.Error("Slack connection error")
	}
}

func (h *Handler) handleEventsAPI(ctx context.Context, evt socketmode.Event) {
	payload, ok := evt.Data.(slackevents.EventsAPIEvent)
	if !ok {
		return
	}

	switch payload.Type {
	case slackevents.CallbackEvent:
		if msg, ok := h.toMessage(payload.InnerEvent); ok {
			h.dispatch(ctx, msg)
		}
	}
}

func (h *Handler) toMessage(inner slackevents.EventsAPIInnerEvent) (IncomingMessage, bool) {
	switch ev := inner.Data.(type) {
	case *slackevents.AppMentionEvent:
		return IncomingMessage{
			ThreadTS:  threadTS(ev.ThreadTimeStamp, ev.TimeStamp),
			ChannelID: ev.Channel,
			UserID:    ev.User,
			Text:      h.stripMention(ev.Text),
		}, true

	case *slackevents.MessageEvent:
		// Ignore bot messages to avoid feedback loops, and channel chatter
		// that is not a DM (mentions arrive as AppMentionEvent).
		if ev.BotID != "" || ev.SubType == "bot_message" || ev.ChannelType != "im" {
			return IncomingMessage{}, false
		}
		return IncomingMessage{
			ThreadTS:  threadTS(ev.ThreadTimeStamp, ev.TimeStamp),
			ChannelID: ev.Channel,
			UserID:    ev.User,
			Text:      strings.TrimSpace(ev.Text),
			IsDM:      true,
		}, true
	}
	return IncomingMessage{}, false
}

func (h *Handler) dispatch(ctx context.Context, msg IncomingMessage) {
	if msg.Text == "" {
		return
	}
	h.log.Info("incoming message",
		"channel", msg.ChannelID,
		"thread", msg.ThreadTS,
		"user", msg.UserID,
		"dm", msg.IsDM,
	)

	h.postReply(ctx, msg.ChannelID, msg.ThreadTS, ":clapper: On it.")
	reply, err := h.worker.Handle(ctx, h.agentName, msg.Text)
	if err != nil {
		h.log.Error("request failed", "err", err)
		reply = "Sorry, that request failed: " + err.Error()
	}
	if strings.TrimSpace(reply) == "" {
		reply = "Done."
	}

	h.postReply(ctx, msg.ChannelID, msg.ThreadTS, reply)
}

func (h *Handler) postReply(ctx context.Context, channelID, threadTS, text string) {
	_, _, err := h.client.PostMessageContext(ctx,
		channelID,
		slack.MsgOptionText(text, false),
		slack.MsgOptionTS(threadTS), // reply in thread
	)
	if err != nil {
		h.log.Error("failed to post message", "err", err)
	}
}

func (h *Handler) stripMention(text string) string {
	mention := "<@" + h.botID + ">"
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), mention))
}

func threadTS(threadTS, msgTS string) string {
	if threadTS != "" {
		return threadTS
	}
	return msgTS
}
