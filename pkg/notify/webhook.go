package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	hferrors "github.com/exordiom/talent-training/pkg/errors"
)

const defaultWebhookTimeout = 10 * time.Second

// WebhookSink POSTs the event as JSON to a completion hook.
type WebhookSink struct {
	url    string
	client *http.Client
}

func NewWebhookSink(url string, client *http.Client) *WebhookSink {
	if client == nil {
		client = &http.Client{Timeout: defaultWebhookTimeout}
	}
	return &WebhookSink{url: url, client: client}
}

func (w *WebhookSink) Notify(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(hferrors.NewNotification(err.Error()), "error encoding completion event")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(hferrors.NewNotification(err.Error()), "error building completion hook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return errors.Wrapf(hferrors.NewNotification(err.Error()), "error calling completion hook %s", w.url)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return hferrors.NewNotification(fmt.Sprintf("completion hook %s answered %d", w.url, resp.StatusCode))
	}
	glog.V(4).Infof("completion hook notified for %s", event.Email)
	return nil
}
