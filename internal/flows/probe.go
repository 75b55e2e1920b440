package flows

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wisdomia/uiverify/internal/browser"
	"github.com/wisdomia/uiverify/internal/config"
	"github.com/wisdomia/uiverify/internal/version"
)

// ProbeFlow checks the health endpoint and every stylesheet linked from the
// home page over plain HTTP, without a browser.
type ProbeFlow struct {
	target config.TargetConfig
	cfg    config.ProbeConfig
	client *resty.Client
}

// NewProbeFlow wraps client when given, otherwise uses one bounded by
// probe.timeout.
func NewProbeFlow(cfg *config.Config, hc *http.Client) *ProbeFlow {
	var client *resty.Client
	if hc != nil {
		client = resty.NewWithClient(hc)
	} else {
		client = resty.New().SetTimeout(cfg.Probe.Timeout)
	}
	client.SetHeader("User-Agent", "uiverify/"+version.Version)

	return &ProbeFlow{
		target: cfg.Target,
		cfg:    cfg.Probe,
		client: client,
	}
}

func (f *ProbeFlow) Name() string       { return Probe }
func (f *ProbeFlow) NeedsBrowser() bool { return false }

func (f *ProbeFlow) Run(ctx context.Context, _ browser.Session, res *Result, log *zap.Logger) error {
	health := f.get(ctx, f.target.URL(f.cfg.HealthPath), nil)
	res.Checks = append(res.Checks, health)
	log.Info("Health check", zap.String("url", health.URL), zap.Int("status", health.Status))

	homeURL := f.target.URL(f.cfg.HomePath)
	var assets []string
	home := f.get(ctx, homeURL, func(body io.Reader) error {
		var err error
		assets, err = f.assetLinks(homeURL, body)
		return err
	})
	res.Checks = append(res.Checks, home)
	log.Info("Home page", zap.String("url", home.URL), zap.Int("status", home.Status), zap.Int("assets", len(assets)))

	assetChecks := make([]Check, len(assets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(f.cfg.MaxConcurrency, 1))
	for i, asset := range assets {
		g.Go(func() error {
			assetChecks[i] = f.get(gctx, asset, nil)
			return nil
		})
	}
	_ = g.Wait()
	res.Checks = append(res.Checks, assetChecks...)

	var failed []string
	for _, c := range res.Checks {
		if c.OK() {
			continue
		}
		reason := c.Error
		if reason == "" {
			reason = fmt.Sprintf("status %d", c.Status)
		}
		failed = append(failed, fmt.Sprintf("%s (%s)", c.URL, reason))
		log.Warn("Check failed", zap.String("url", c.URL), zap.String("reason", reason))
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d checks failed: %s", len(failed), len(res.Checks), strings.Join(failed, ", "))
	}
	log.Info("All checks passed.", zap.Int("checks", len(res.Checks)))
	return nil
}

// get performs one check; parse, when set, reads a 2xx body.
func (f *ProbeFlow) get(ctx context.Context, target string, parse func(io.Reader) error) Check {
	check := Check{URL: target}
	resp, err := f.client.R().SetContext(ctx).Get(target)
	if err != nil {
		check.Error = err.Error()
		return check
	}

	check.Status = resp.StatusCode()
	if parse != nil && check.OK() {
		if err := parse(bytes.NewReader(resp.Body())); err != nil {
			check.Error = err.Error()
		}
	}
	return check
}

// assetLinks resolves the href of every element matching the asset selector
// against the page URL, dropping duplicates.
func (f *ProbeFlow) assetLinks(pageURL string, body io.Reader) ([]string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", pageURL, err)
	}

	seen := make(map[string]struct{})
	var links []string
	var errs []error
	doc.Find(f.cfg.AssetSelector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			errs = append(errs, fmt.Errorf("bad asset href %q: %w", href, err))
			return
		}
		abs := base.ResolveReference(ref).String()
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	})
	return links, errors.Join(errs...)
}
