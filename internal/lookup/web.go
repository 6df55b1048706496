package lookup

import (
	"context"
	"errors"
	"fmt"
	"github.com/PuerkitoBio/goquery"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// WebDialer returns a Dialer for sessions that read the public t.me preview
// page. Each session owns its own transport, so a reconnect drops every
// pooled connection of the previous one.
func WebDialer(baseURL string, timeout time.Duration) Dialer {
	base := strings.TrimRight(baseURL, "/")
	return func(ctx context.Context) (Session, error) {
		tr := &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         (&net.Dialer{Timeout: timeout}).DialContext,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		}
		return &webSession{
			base: base,
			http: &http.Client{Transport: tr, Timeout: timeout},
			tr:   tr,
		}, nil
	}
}

type webSession struct {
	base string
	http *http.Client
	tr   *http.Transport
	dead atomic.Bool
}

func (s *webSession) Alive() bool { return !s.dead.Load() }

func (s *webSession) Close() error {
	s.dead.Store(true)
	s.tr.CloseIdleConnections()
	return nil
}

func (s *webSession) Resolve(ctx context.Context, handle string) (Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base+"/"+handle, nil)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrLookup, err)
	}
	req.Header.Set("Accept", "text/html")
	req.Header.Set("User-Agent", "stars-storefront/1.0")

	res, err := s.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return Profile{}, err
		}
		s.dead.Store(true)
		return Profile{}, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusNotFound:
		return Profile{Handle: handle}, nil
	case res.StatusCode >= 500:
		return Profile{}, fmt.Errorf("%w: status %d", ErrTransient, res.StatusCode)
	case res.StatusCode != http.StatusOK:
		return Profile{}, fmt.Errorf("%w: status %d", ErrLookup, res.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: parse preview: %v", ErrLookup, err)
	}
	return parsePreview(doc, handle), nil
}

// parsePreview reads the preview markup. Pages without a title block belong
// to handles nobody owns.
func parsePreview(doc *goquery.Document, handle string) Profile {
	title := doc.Find(".tgme_page_title").First()
	if title.Length() == 0 {
		return Profile{Handle: handle}
	}
	p := Profile{
		Handle: handle,
		Name:   strings.Join(strings.Fields(title.Text()), " "),
		Exists: true,
	}
	if extra := strings.TrimSpace(doc.Find(".tgme_page_extra").First().Text()); strings.HasPrefix(extra, "@") {
		if h := strings.Fields(extra)[0][1:]; strings.EqualFold(h, handle) {
			p.Handle = h
		}
	}
	if src, ok := doc.Find("img.tgme_page_photo_image").First().Attr("src"); ok && src != "" {
		p.Avatar = src
	}
	return p
}
