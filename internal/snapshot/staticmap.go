package snapshot

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"time"

	_ "image/jpeg"

	"golang.org/x/image/draw"
)

// DefaultStaticMapURL is the vendor static map endpoint.
const DefaultStaticMapURL = "https://maps.googleapis.com/maps/api/staticmap"

// StaticMapClient renders viewports by fetching pre-rendered map tiles
// from the static map endpoint. Images wider than MaxWidth are downscaled
// before encoding so data-channel payloads stay small.
type StaticMapClient struct {
	BaseURL    string
	Key        string
	Width      int
	Height     int
	Scale      int
	MapType    string
	MaxWidth   int
	HTTPClient *http.Client
}

// NewStaticMapClient creates a client with the reference viewport size.
func NewStaticMapClient(key string) *StaticMapClient {
	return &StaticMapClient{
		BaseURL:    DefaultStaticMapURL,
		Key:        key,
		Width:      640,
		Height:     400,
		Scale:      2,
		MapType:    "roadmap",
		MaxWidth:   800,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Fetch implements Fetcher: it GETs the rendered viewport and returns it
// as a PNG data URL.
func (c *StaticMapClient) Fetch(ctx context.Context, vp Viewport) (string, error) {
	q := url.Values{}
	q.Set("center", fmt.Sprintf("%f,%f", vp.Lat, vp.Lng))
	q.Set("zoom", fmt.Sprintf("%d", vp.Zoom))
	q.Set("size", fmt.Sprintf("%dx%d", c.Width, c.Height))
	q.Set("scale", fmt.Sprintf("%d", c.Scale))
	q.Set("maptype", c.MapType)
	q.Set("key", c.Key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build static map request: %w", err)
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("static map request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("static map status %d: %s", resp.StatusCode, string(body))
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return "", fmt.Errorf("decode static map image: %w", err)
	}
	img = c.downscale(img)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func (c *StaticMapClient) downscale(img image.Image) image.Image {
	if c.MaxWidth <= 0 {
		return img
	}
	bounds := img.Bounds()
	w := bounds.Dx()
	if w <= c.MaxWidth {
		return img
	}
	h := bounds.Dy() * c.MaxWidth / w
	dst := image.NewRGBA(image.Rect(0, 0, c.MaxWidth, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
