package genai

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gogpu/gg"
	"github.com/rs/zerolog"

	"tailor/internal/infra"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-2.5-flash-image"

	// error bodies are only read for their message
	maxErrorBody = 64 << 10
)

var (
	// ErrNoImage means the model answered with text only.
	ErrNoImage = errors.New("genai: model returned no image")
	// ErrBlocked means the prompt was refused by the safety filter.
	ErrBlocked = errors.New("genai: prompt blocked")
)

type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client generates artwork with Gemini. Without an API key it draws a
// deterministic placeholder on the key color so the pipeline runs in local
// and CI environments.
type Client struct {
	apiKey     string
	endpoint   string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

// GenerateOptions carries the current artwork when the request is an edit.
type GenerateOptions struct {
	SourceImage         []byte
	SourceImageMimeType string
}

// Result is the outcome of one generation. Failures are values, not
// errors, so the job can record the upstream message as its failure reason.
type Result struct {
	Success   bool
	ImageData []byte
	MimeType  string
	Error     string
}

func NewClient(opts Options) (*Client, error) {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("genai: base url: %w", err)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		endpoint:   base + "/models/" + url.PathEscape(model) + ":generateContent",
		model:      model,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

func (c *Client) Model() string { return c.model }

// Synthetic reports whether images are drawn locally.
func (c *Client) Synthetic() bool { return c.apiKey == "" }

// Generate produces one image for prompt.
func (c *Client) Generate(ctx context.Context, prompt string, opts GenerateOptions) Result {
	if err := ctx.Err(); err != nil {
		return failed(err)
	}
	if strings.TrimSpace(prompt) == "" {
		return failed(errors.New("genai: prompt is required"))
	}

	start := time.Now()
	var (
		data []byte
		mime = "image/png"
		err  error
	)
	if c.Synthetic() {
		data, err = drawPlaceholder(placeholderSize, seedFor(c.model, prompt, opts.SourceImage))
	} else {
		data, mime, err = c.generate(ctx, prompt, opts)
	}

	log := c.logger.With().Str("model", c.model).Bool("synthetic", c.Synthetic()).Bool("edit", len(opts.SourceImage) > 0).Logger()
	if err != nil {
		log.Warn().Err(err).Dur("took", time.Since(start)).Msg("genai: generation failed")
		return failed(err)
	}
	log.Debug().Int("bytes", len(data)).Dur("took", time.Since(start)).Msg("genai: generated artwork")
	return Result{Success: true, ImageData: data, MimeType: mime}
}

func failed(err error) Result {
	return Result{Error: err.Error()}
}

func (c *Client) generate(ctx context.Context, prompt string, opts GenerateOptions) ([]byte, string, error) {
	parts := []part{{Text: prompt}}
	if len(opts.SourceImage) > 0 {
		mime := opts.SourceImageMimeType
		if mime == "" {
			mime = http.DetectContentType(opts.SourceImage)
		}
		parts = append(parts, part{InlineData: &blob{
			MimeType: mime,
			Data:     base64.StdEncoding.EncodeToString(opts.SourceImage),
		}})
	}

	var resp generateResponse
	err := c.post(ctx, generateRequest{
		Contents: []content{{Role: "user", Parts: parts}},
		GenerationConfig: &generationConfig{
			CandidateCount:     1,
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
	}, &resp)
	if err != nil {
		return nil, "", err
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, "", fmt.Errorf("%w: %s", ErrBlocked, resp.PromptFeedback.BlockReason)
	}

	var text []string
	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if t := strings.TrimSpace(p.Text); t != "" {
				text = append(text, t)
			}
			if p.InlineData == nil || p.InlineData.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if err != nil {
				return nil, "", fmt.Errorf("genai: decode inline image: %w", err)
			}
			mime := p.InlineData.MimeType
			if mime == "" {
				mime = http.DetectContentType(data)
			}
			return data, mime, nil
		}
	}
	if len(text) > 0 {
		return nil, "", fmt.Errorf("%w: %s", ErrNoImage, strings.Join(text, " "))
	}
	return nil, "", ErrNoImage
}

// post sends body as JSON and decodes a 2xx answer into out. Error answers
// are reduced to the upstream message.
func (c *Client) post(ctx context.Context, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("genai: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("genai: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.URL.RawQuery = url.Values{"key": {c.apiKey}}.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("genai: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var e apiError
		if json.Unmarshal(msg, &e) == nil && e.Error.Message != "" {
			return fmt.Errorf("genai: status %d: %s", resp.StatusCode, e.Error.Message)
		}
		if m := strings.TrimSpace(string(msg)); m != "" {
			return fmt.Errorf("genai: status %d: %s", resp.StatusCode, m)
		}
		return fmt.Errorf("genai: status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("genai: decode response: %w", err)
	}
	return nil
}

const placeholderSize = 1024

// drawPlaceholder draws a seeded badge on a solid key-color backdrop, the
// same shape of output the artwork prompt asks the model for.
func drawPlaceholder(size int, seed []byte) ([]byte, error) {
	dc := gg.NewContext(size, size)
	defer dc.Close()
	dc.ClearWithColor(gg.Hex(KeyColorHex))

	s := float64(size)
	dc.SetColor(placeholderColor(seed[0:3]).Color())
	dc.DrawCircle(s/2, s/2, s*0.3)
	if err := dc.Fill(); err != nil {
		return nil, fmt.Errorf("genai: draw placeholder: %w", err)
	}
	dc.SetColor(placeholderColor(seed[3:6]).Color())
	dc.DrawRoundedRectangle(s*0.3, s*0.42, s*0.4, s*0.16, s*0.04)
	if err := dc.Fill(); err != nil {
		return nil, fmt.Errorf("genai: draw placeholder: %w", err)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("genai: encode placeholder: %w", err)
	}
	return buf.Bytes(), nil
}

// placeholderColor keeps green at half intensity or more so the badge
// never falls inside the magenta key tolerance.
func placeholderColor(rgb []byte) gg.RGBA {
	c := gg.Hex(hex.EncodeToString(rgb))
	c.G = 0.5 + c.G/2
	c.A = 1
	return c
}

func seedFor(model, prompt string, source []byte) []byte {
	h := sha256.New()
	for _, s := range []string{model, prompt} {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	h.Write(source)
	return h.Sum(nil)
}
