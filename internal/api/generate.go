// SPDX-License-Identifier: MIT

package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// artGenerator calls the OpenAI image generation API. Nil-safe: without an
// API key the endpoint reports itself unavailable.
type artGenerator struct {
	key    string
	base   string
	client *http.Client
}

func newArtGenerator(key string) *artGenerator {
	return &artGenerator{
		key:    key,
		base:   "https://api.openai.com/v1",
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

func (g *artGenerator) enabled() bool { return g.key != "" }

type generationRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format"`
}

type generationResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// generate returns the raw bytes of one generated image. The portrait size
// matches the panel's aspect ratio so the pipeline crop stays minimal.
func (g *artGenerator) generate(ctx context.Context, prompt string) ([]byte, error) {
	body, err := json.Marshal(generationRequest{
		Model:          "dall-e-3",
		Prompt:         prompt,
		Size:           "1024x1792",
		ResponseFormat: "b64_json",
	})
	if err != nil {
		return nil, fmt.Errorf("encode generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.base+"/images/generations", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build generation request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.key)
	req.Header.Set("Content-Type", "application/json")

	res, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generation request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("generation backend returned %s", res.Status)
	}

	var gr generationResponse
	if err := json.NewDecoder(res.Body).Decode(&gr); err != nil {
		return nil, fmt.Errorf("decode generation response: %w", err)
	}
	if len(gr.Data) == 0 || gr.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("generation backend returned no image")
	}

	img, err := base64.StdEncoding.DecodeString(gr.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decode generated image: %w", err)
	}
	return img, nil
}
