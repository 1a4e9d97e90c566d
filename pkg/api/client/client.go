// Caprica
// Copyright (c) 2026 The Caprica Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Caprica.
//
// Caprica is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Caprica is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Caprica.  If not, see <http://www.gnu.org/licenses/>.

// Package client talks to a running instance's status API.
package client

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
	"time"

	"github.com/ndf-zz/caprica/pkg/api/models"
	"github.com/ndf-zz/caprica/pkg/config"
)

var (
	ErrAPIDisabled = errors.New("status api is disabled (api.port = 0)")
	ErrStatus      = errors.New("unexpected response status")
)

const requestTimeout = 5 * time.Second

// Client calls the status API over HTTP.
type Client struct {
	http *http.Client
	base string
}

// New returns a client for the API at base, e.g. "http://127.0.0.1:8080".
func New(base string) *Client {
	return &Client{
		base: base,
		http: &http.Client{Timeout: requestTimeout},
	}
}

// NewLocal returns a client for the API of the instance using cfg.
func NewLocal(cfg *config.Instance) (*Client, error) {
	port := cfg.APIPort()
	if port == 0 {
		return nil, ErrAPIDisabled
	}
	u := url.URL{Scheme: "http", Host: "localhost:" + strconv.Itoa(port)}
	return New(u.String()), nil
}

func (c *Client) Status(ctx context.Context) (models.StatusResponse, error) {
	var status models.StatusResponse
	err := c.do(ctx, http.MethodGet, models.PathStatus, "", nil, &status)
	return status, err
}

// SendFrames posts raw protocol frames.
func (c *Client) SendFrames(ctx context.Context, frames []byte) (models.QueueResult, error) {
	var result models.QueueResult
	err := c.do(ctx, http.MethodPost, models.PathUNT4, "application/octet-stream", frames, &result)
	return result, err
}

// SendText places text at a cell.
func (c *Client) SendText(ctx context.Context, req models.TextRequest) (models.QueueResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return models.QueueResult{}, fmt.Errorf("marshal text request: %w", err)
	}
	var result models.QueueResult
	err = c.do(ctx, http.MethodPost, models.PathText, "application/json", body, &result)
	return result, err
}

func (c *Client) Clear(ctx context.Context) (models.QueueResult, error) {
	var result models.QueueResult
	err := c.do(ctx, http.MethodPost, models.PathClear, "", nil, &result)
	return result, err
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte, dest any) error {
	var rd io.Reader = http.NoBody
	if body != nil {
		rd = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr models.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%w: %d: %s", ErrStatus, resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
