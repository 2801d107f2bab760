package sink

import (
	"context"
	"fmt"
	"io"
	"log"
	"slices"
	"time"

	"github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
	"github.com/patrickmn/go-cache"

	"github.com/tphakala/kws-go/internal/conf"
	"github.com/tphakala/kws-go/internal/detection"
	"github.com/tphakala/kws-go/internal/errors"
	"github.com/tphakala/kws-go/internal/logger"
)

// Sender sends one message to all configured services.
type Sender interface {
	Send(message string, params *stypes.Params) []error
}

// NotifySink pushes detections through shoutrrr. A label is notified at most
// once per cooldown and ignored labels are never notified.
type NotifySink struct {
	sender   Sender
	title    string
	ignore   []string
	cooldown *cache.Cache
	ttl      time.Duration
}

// NewNotifySink builds a sender from the notify settings.
func NewNotifySink(settings *conf.Settings) (*NotifySink, error) {
	sender, err := shoutrrr.CreateSender(settings.Notify.URLs...)
	if err != nil {
		return nil, errors.New(fmt.Errorf("invalid notification URL: %s", logger.RedactSensitiveData(err.Error()))).
			Component("sink").
			Category(errors.CategoryConfiguration).
			Context("url_count", len(settings.Notify.URLs)).
			Build()
	}
	if settings.Notify.Timeout > 0 {
		sender.Timeout = settings.Notify.Timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))

	return NewNotifySinkWithSender(sender, settings.Main.Name, settings.Notify.IgnoreLabels, settings.Notify.Cooldown), nil
}

// NewNotifySinkWithSender returns a NotifySink using sender.
func NewNotifySinkWithSender(sender Sender, title string, ignore []string, cooldown time.Duration) *NotifySink {
	ttl := cooldown
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	// at most one entry per label, expired entries are replaced on Add
	return &NotifySink{
		sender:   sender,
		title:    title,
		ignore:   slices.Clone(ignore),
		cooldown: cache.New(ttl, 0),
		ttl:      cooldown,
	}
}

// Name implements DetectionSink.
func (s *NotifySink) Name() string { return "notify" }

// Deliver implements DetectionSink.
func (s *NotifySink) Deliver(_ context.Context, ev detection.Event) error {
	if slices.Contains(s.ignore, ev.Label) {
		return ErrSkipped
	}
	if s.ttl > 0 {
		if err := s.cooldown.Add(ev.Label, ev.Timestamp, cache.DefaultExpiration); err != nil {
			return ErrSkipped
		}
	}

	params := stypes.Params{}
	if s.title != "" {
		params.SetTitle(s.title)
	}
	message := fmt.Sprintf("Heard %q (%.0f%%) at %s", ev.Label, ev.Confidence*100, ev.Timestamp.Format("15:04:05"))

	for _, err := range s.sender.Send(message, &params) {
		if err != nil {
			s.cooldown.Delete(ev.Label)
			return errors.New(fmt.Errorf("notification failed: %s", logger.RedactSensitiveData(err.Error()))).
				Component("sink").
				Category(errors.CategoryNotification).
				Context("label", ev.Label).
				Build()
		}
	}
	return nil
}
