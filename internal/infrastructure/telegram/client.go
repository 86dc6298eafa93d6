package telegram

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	pebbledb "github.com/cockroachdb/pebble"
	"github.com/go-faster/errors"
	bboltstor "github.com/gotd/contrib/bbolt"
	"github.com/gotd/contrib/pebble"
	"github.com/gotd/contrib/storage"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"
	"github.com/vitos/signal_trader/internal/domain"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

// Handler receives each accepted inbound message. It is invoked on its own
// goroutine; messages may be in flight concurrently.
type Handler func(ctx context.Context, msg domain.InboundMessage)

// Client is the MTProto userbot transport. It listens to the chats allowed by
// the account configuration and forwards their messages.
type Client struct {
	appID       int
	appHash     string
	phone       string
	sessionPath string
	peersPath   string
	allowed     map[int64]struct{}
	log         *zap.Logger
}

func NewClient(appID int, appHash, phone, sessionPath, peersPath string, allowedChats []int64, log *zap.Logger) *Client {
	allowed := make(map[int64]struct{}, len(allowedChats))
	for _, id := range allowedChats {
		allowed[id] = struct{}{}
	}
	return &Client{
		appID:       appID,
		appHash:     appHash,
		phone:       phone,
		sessionPath: sessionPath,
		peersPath:   peersPath,
		allowed:     allowed,
		log:         log,
	}
}

// Run connects, authorizes if necessary, and blocks delivering messages until
// ctx is cancelled.
func (c *Client) Run(ctx context.Context, onMessage Handler) error {
	sessionDB, err := bolt.Open(c.sessionPath, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return errors.Wrap(err, "open session storage")
	}
	defer sessionDB.Close()

	peerDB, err := pebbledb.Open(c.peersPath, &pebbledb.Options{})
	if err != nil {
		return errors.Wrap(err, "open peer storage")
	}
	defer peerDB.Close()
	peerStorage := pebble.NewPeerStorage(peerDB)

	dispatcher := tg.NewUpdateDispatcher()
	client := telegram.NewClient(c.appID, c.appHash, telegram.Options{
		SessionStorage: bboltstor.NewSessionStorage(sessionDB, "session", []byte("session")),
		UpdateHandler:  storage.UpdateHook(dispatcher, peerStorage),
		Logger:         c.log.Named("td"),
	})
	api := client.API()

	dispatcher.OnNewChannelMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewChannelMessage) error {
		c.dispatch(ctx, api, u.Message, onMessage)
		return nil
	})
	dispatcher.OnNewMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewMessage) error {
		c.dispatch(ctx, api, u.Message, onMessage)
		return nil
	})

	return client.Run(ctx, func(ctx context.Context) error {
		flow := auth.NewFlow(
			auth.Constant(c.phone, "", auth.CodeAuthenticatorFunc(c.promptCode)),
			auth.SendCodeOptions{},
		)
		if err := client.Auth().IfNecessary(ctx, flow); err != nil {
			return errors.Wrap(err, "auth")
		}

		c.log.Info("Connected to Telegram, listening for new messages",
			zap.Int("allowed_chats", len(c.allowed)))

		<-ctx.Done()
		return ctx.Err()
	})
}

func (c *Client) promptCode(ctx context.Context, _ *tg.AuthSentCode) (string, error) {
	fmt.Print("Please enter the verification code sent to your phone: ")
	code, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", errors.Wrap(err, "read code")
	}
	return strings.TrimSpace(code), nil
}

func (c *Client) dispatch(ctx context.Context, api *tg.Client, msg tg.MessageClass, onMessage Handler) {
	m, ok := msg.(*tg.Message)
	if !ok || m.Out {
		return
	}

	chatID := peerID(m.PeerID)
	if _, ok := c.allowed[chatID]; !ok {
		return
	}

	inbound := domain.InboundMessage{
		ID:     m.ID,
		Text:   m.Message,
		Date:   time.Unix(int64(m.Date), 0),
		ChatID: chatID,
	}
	if photo := messagePhoto(m); photo != nil {
		inbound.PhotoBase64 = c.downloadPhoto(ctx, api, photo)
	}

	c.log.Info("Received message from chat", zap.Int64("chat_id", chatID))

	go onMessage(ctx, inbound)
}

func peerID(peer tg.PeerClass) int64 {
	switch p := peer.(type) {
	case *tg.PeerChannel:
		return p.ChannelID
	case *tg.PeerChat:
		return p.ChatID
	case *tg.PeerUser:
		return p.UserID
	}
	return 0
}

func messagePhoto(m *tg.Message) *tg.Photo {
	media, ok := m.Media.(*tg.MessageMediaPhoto)
	if !ok {
		return nil
	}
	photo, ok := media.Photo.(*tg.Photo)
	if !ok {
		return nil
	}
	return photo
}

// downloadPhoto fetches the largest photo size and returns it base64-encoded.
// Failures degrade to text-only extraction.
func (c *Client) downloadPhoto(ctx context.Context, api *tg.Client, photo *tg.Photo) string {
	thumb := largestThumb(photo)
	if thumb == "" {
		return ""
	}

	loc := &tg.InputPhotoFileLocation{
		ID:            photo.ID,
		AccessHash:    photo.AccessHash,
		FileReference: photo.FileReference,
		ThumbSize:     thumb,
	}

	var buf bytes.Buffer
	if _, err := downloader.NewDownloader().Download(api, loc).Stream(ctx, &buf); err != nil {
		c.log.Error("Failed to download photo", zap.Error(err))
		return ""
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func largestThumb(photo *tg.Photo) string {
	var (
		best     string
		bestSize int
	)
	for _, s := range photo.Sizes {
		switch size := s.(type) {
		case *tg.PhotoSize:
			if size.Size >= bestSize {
				best, bestSize = size.Type, size.Size
			}
		case *tg.PhotoSizeProgressive:
			for _, n := range size.Sizes {
				if n >= bestSize {
					best, bestSize = size.Type, n
				}
			}
		}
	}
	return best
}
