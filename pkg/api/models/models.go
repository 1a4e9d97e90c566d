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

// Package models holds the request and response bodies of the HTTP status
// API.
package models

import (
	"time"

	"github.com/ndf-zz/caprica/pkg/api/validation"
	"github.com/ndf-zz/caprica/pkg/service/presenter"
	"github.com/ndf-zz/caprica/pkg/service/queue"
)

const (
	PathStatus  = "/status"
	PathUNT4    = "/unt4"
	PathText    = "/text"
	PathReading = "/reading"
	PathClear   = "/clear"
)

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Started     time.Time          `json:"started"`
	Version     string             `json:"version"`
	Listen      string             `json:"listen,omitempty"`
	Sources     []string           `json:"sources"`
	Display     presenter.Snapshot `json:"display"`
	Queue       queue.Stats        `json:"queue"`
	Accepted    uint64             `json:"accepted"`
	Connections int                `json:"connections"`
}

// TextRequest places text at a cell, as a positioned packet would.
type TextRequest struct {
	Text   string `json:"text" validate:"printable,max=256"`
	Header string `json:"header" validate:"header"`
	Column int    `json:"col" validate:"min=0,max=99"`
	Row    int    `json:"row" validate:"min=0,max=99"`
	Erase  bool   `json:"erase"`
}

// ReadingRequest updates a sensor reading shown on the clock caption.
type ReadingRequest struct {
	Value *float64 `json:"value" validate:"required"`
	Tag   string   `json:"tag" validate:"required,oneof=temperature humidity pressure"`
}

// QueueResult reports what happened to the packets of one request.
type QueueResult struct {
	RequestID string `json:"requestId,omitempty"`
	Queued    int    `json:"queued"`
	Dropped   int    `json:"dropped"`
	Malformed int    `json:"malformed"`
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Details *validation.Error `json:"details,omitempty"`
}
