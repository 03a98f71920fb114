// Package fulfillment is a client for the print-on-demand store API that
// turns per-side print files into a sellable product.
package fulfillment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tailor/internal/cache"
	"tailor/internal/design"
	"tailor/internal/infra"
)

var (
	// ErrMissingAPIKey indicates that the client was configured without credentials.
	ErrMissingAPIKey = errors.New("fulfillment: api key is required")
	// ErrMockupFailed means the provider reported the mockup task as failed.
	ErrMockupFailed = errors.New("fulfillment: mockup task failed")
	// ErrMockupTimeout means the task did not finish within the poll budget.
	ErrMockupTimeout = errors.New("fulfillment: mockup task timed out")
	// ErrPlacementUnavailable means the catalog product has no printfile for a placement.
	ErrPlacementUnavailable = errors.New("fulfillment: placement not available")
)

const (
	defaultPollAttempts = 20
	defaultPollInterval = 3 * time.Second
	defaultCacheTTL     = time.Hour
)

type Options struct {
	APIKey       string
	BaseURL      string
	HTTPClient   *http.Client
	Logger       *infra.Logger
	Cache        cache.Cache[design.PrintArea]
	CacheTTL     time.Duration
	PollAttempts int
	PollInterval time.Duration
}

type Client struct {
	apiKey       string
	baseURL      string
	httpClient   *http.Client
	logger       *infra.Logger
	cache        cache.Cache[design.PrintArea]
	cacheTTL     time.Duration
	pollAttempts int
	pollInterval time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
}

// APIError is a non-success envelope returned by the store API.
type APIError struct {
	Status  int
	Reason  string
	Message string
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("fulfillment: %s: %s (status %d)", e.Reason, e.Message, e.Status)
	}
	return fmt.Sprintf("fulfillment: %s (status %d)", e.Message, e.Status)
}

type envelope struct {
	Code   int             `json:"code"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Reason  string `json:"reason"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// File is one print file attached to a product variant.
type File struct {
	Placement string `json:"type"`
	URL       string `json:"url"`
}

// ProductSpec describes the product to create. ExternalID is our key for
// the product; the store rejects a second product with the same one.
type ProductSpec struct {
	ExternalID  string
	Title       string
	Files       []File
	VariantIDs  []int
	RetailPrice string
}

type Product struct {
	ID           int64  `json:"id"`
	ExternalID   string `json:"external_id"`
	Name         string `json:"name"`
	Variants     int    `json:"variants"`
	ThumbnailURL string `json:"thumbnail_url"`
}

type SyncVariant struct {
	ID          int64  `json:"id"`
	ExternalID  string `json:"external_id"`
	ProductID   int64  `json:"sync_product_id"`
	VariantID   int    `json:"variant_id"`
	Name        string `json:"name"`
	RetailPrice string `json:"retail_price"`
	Files       []File `json:"files"`
}

// ProductDetail is a product with its variants.
type ProductDetail struct {
	Product  Product       `json:"sync_product"`
	Variants []SyncVariant `json:"sync_variants"`
}

type MockupStatus string

const (
	MockupPending   MockupStatus = "pending"
	MockupCompleted MockupStatus = "completed"
	MockupFailed    MockupStatus = "failed"
)

type Mockup struct {
	Placement string `json:"placement"`
	URL       string `json:"mockup_url"`
}

type MockupTask struct {
	TaskKey string       `json:"task_key"`
	Status  MockupStatus `json:"status"`
	Error   string       `json:"error"`
	Mockups []Mockup     `json:"mockups"`
}

type syncProductPayload struct {
	SyncProduct  syncProductBody   `json:"sync_product"`
	SyncVariants []syncVariantBody `json:"sync_variants"`
}

type syncProductBody struct {
	ExternalID string `json:"external_id,omitempty"`
	Name       string `json:"name"`
}

type syncVariantBody struct {
	VariantID   int    `json:"variant_id"`
	RetailPrice string `json:"retail_price,omitempty"`
	Files       []File `json:"files"`
}

type printfileResult struct {
	ProductID         int `json:"product_id"`
	VariantPrintfiles []struct {
		VariantID  int            `json:"variant_id"`
		Placements map[string]int `json:"placements"`
	} `json:"variant_printfiles"`
	Printfiles []struct {
		PrintfileID int `json:"printfile_id"`
		Width       int `json:"width"`
		Height      int `json:"height"`
		DPI         int `json:"dpi"`
	} `json:"printfiles"`
}

type mockupFile struct {
	Placement string `json:"placement"`
	ImageURL  string `json:"image_url"`
}

type mockupTaskPayload struct {
	VariantIDs []int        `json:"variant_ids"`
	Format     string       `json:"format"`
	Files      []mockupFile `json:"files"`
}

func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.printful.com"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	c := &Client{
		apiKey:       strings.TrimSpace(opts.APIKey),
		baseURL:      baseURL,
		httpClient:   httpClient,
		logger:       logger,
		cache:        opts.Cache,
		cacheTTL:     opts.CacheTTL,
		pollAttempts: opts.PollAttempts,
		pollInterval: opts.PollInterval,
		sleep:        sleepContext,
	}
	if c.cache == nil {
		c.cache = cache.NewMemory[design.PrintArea]()
	}
	if c.cacheTTL <= 0 {
		c.cacheTTL = defaultCacheTTL
	}
	if c.pollAttempts <= 0 {
		c.pollAttempts = defaultPollAttempts
	}
	if c.pollInterval <= 0 {
		c.pollInterval = defaultPollInterval
	}
	return c, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// CreateProduct creates a store product whose every variant carries the
// same print files.
func (c *Client) CreateProduct(ctx context.Context, spec ProductSpec) (*Product, error) {
	if len(spec.Files) == 0 {
		return nil, errors.New("fulfillment: at least one print file is required")
	}
	if len(spec.VariantIDs) == 0 {
		return nil, errors.New("fulfillment: at least one variant is required")
	}
	payload := syncProductPayload{SyncProduct: syncProductBody{ExternalID: spec.ExternalID, Name: spec.Title}}
	for _, id := range spec.VariantIDs {
		payload.SyncVariants = append(payload.SyncVariants, syncVariantBody{
			VariantID:   id,
			RetailPrice: spec.RetailPrice,
			Files:       spec.Files,
		})
	}

	var product Product
	if err := c.do(ctx, http.MethodPost, "/store/products", payload, &product); err != nil {
		return nil, err
	}
	c.logger.Info().
		Int64("product_id", product.ID).
		Int("files", len(spec.Files)).
		Int("variants", len(spec.VariantIDs)).
		Msg("fulfillment: product created")
	return &product, nil
}

func (c *Client) GetProduct(ctx context.Context, id int64) (*ProductDetail, error) {
	var detail ProductDetail
	if err := c.do(ctx, http.MethodGet, "/store/products/"+strconv.FormatInt(id, 10), nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindProduct looks a product up by the external id it was created with.
// It returns nil, nil when the store has no such product.
func (c *Client) FindProduct(ctx context.Context, externalID string) (*Product, error) {
	if strings.TrimSpace(externalID) == "" {
		return nil, errors.New("fulfillment: external id is required")
	}
	var detail ProductDetail
	err := c.do(ctx, http.MethodGet, "/store/products/@"+url.PathEscape(externalID), nil, &detail)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &detail.Product, nil
}

func (c *Client) GetSyncVariant(ctx context.Context, id int64) (*SyncVariant, error) {
	var out struct {
		SyncVariant SyncVariant `json:"sync_variant"`
	}
	if err := c.do(ctx, http.MethodGet, "/store/variants/"+strconv.FormatInt(id, 10), nil, &out); err != nil {
		return nil, err
	}
	return &out.SyncVariant, nil
}

// PrintArea returns the printfile size of a catalog product placement.
// Results are cached for the configured TTL.
func (c *Client) PrintArea(ctx context.Context, catalogProductID int, placement string) (design.PrintArea, error) {
	key := fmt.Sprintf("printfile:%d:%s", catalogProductID, placement)
	if area, _, ok := c.cache.Get(ctx, key); ok {
		return area, nil
	}

	var res printfileResult
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/mockup-generator/printfiles/%d", catalogProductID), nil, &res); err != nil {
		return design.PrintArea{}, err
	}
	printfileID := 0
	for _, vp := range res.VariantPrintfiles {
		if id, ok := vp.Placements[placement]; ok {
			printfileID = id
			break
		}
	}
	for _, pf := range res.Printfiles {
		if pf.PrintfileID == printfileID && printfileID != 0 && pf.Width > 0 && pf.Height > 0 {
			area := design.PrintArea{Width: pf.Width, Height: pf.Height, DPI: pf.DPI}
			c.cache.Set(ctx, key, area, c.cacheTTL)
			return area, nil
		}
	}
	return design.PrintArea{}, fmt.Errorf("%w: %s", ErrPlacementUnavailable, placement)
}

// CreateMockupTask starts an asynchronous mockup render and returns its key.
func (c *Client) CreateMockupTask(ctx context.Context, catalogProductID int, variantIDs []int, files []File) (string, error) {
	payload := mockupTaskPayload{VariantIDs: variantIDs, Format: "png"}
	for _, f := range files {
		payload.Files = append(payload.Files, mockupFile{Placement: f.Placement, ImageURL: f.URL})
	}
	var task MockupTask
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/mockup-generator/create-task/%d", catalogProductID), payload, &task); err != nil {
		return "", err
	}
	if task.TaskKey == "" {
		return "", errors.New("fulfillment: mockup task key missing")
	}
	return task.TaskKey, nil
}

func (c *Client) GetMockupTask(ctx context.Context, taskKey string) (*MockupTask, error) {
	var task MockupTask
	path := "/mockup-generator/task?task_key=" + url.QueryEscape(taskKey)
	if err := c.do(ctx, http.MethodGet, path, nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// WaitForMockup polls a mockup task until it completes, fails or the
// attempt budget runs out. A timeout is reported as ErrMockupTimeout, a
// provider failure as ErrMockupFailed.
func (c *Client) WaitForMockup(ctx context.Context, taskKey string) (*MockupTask, error) {
	for attempt := 1; attempt <= c.pollAttempts; attempt++ {
		task, err := c.GetMockupTask(ctx, taskKey)
		if err != nil {
			return nil, err
		}
		switch task.Status {
		case MockupCompleted:
			return task, nil
		case MockupFailed:
			return nil, fmt.Errorf("%w: %s", ErrMockupFailed, task.Error)
		}
		c.logger.Debug().
			Str("task_key", taskKey).
			Int("attempt", attempt).
			Msg("fulfillment: mockup pending")
		if attempt == c.pollAttempts {
			break
		}
		if err := c.sleep(ctx, c.pollInterval); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w after %d attempts", ErrMockupTimeout, c.pollAttempts)
}

func (c *Client) do(ctx context.Context, method, path string, payload any, out any) error {
	if !c.HasCredentials() {
		return ErrMissingAPIKey
	}
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("fulfillment: encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("fulfillment: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fulfillment: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("fulfillment: read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 300 {
			return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		}
		return fmt.Errorf("fulfillment: decode response: %w", err)
	}
	if resp.StatusCode >= 300 || (env.Code != 0 && env.Code >= 300) {
		apiErr := &APIError{Status: resp.StatusCode}
		if env.Error != nil {
			apiErr.Reason = env.Error.Reason
			apiErr.Message = env.Error.Message
		}
		if apiErr.Message == "" {
			var msg string
			if json.Unmarshal(env.Result, &msg) == nil {
				apiErr.Message = msg
			}
		}
		return apiErr
	}
	if out == nil || len(env.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("fulfillment: decode result: %w", err)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
