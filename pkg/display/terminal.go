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

package display

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog/log"
)

// upperHalf paints the top pixel as foreground and the bottom as
// background, giving two pixel rows per terminal row.
const upperHalf = '▀'

// TerminalSink previews frames in the controlling terminal using half-block
// cells. Pressing q, Esc or Ctrl-C closes Done.
type TerminalSink struct {
	screen tcell.Screen
	done   chan struct{}
	once   sync.Once
	width  int
	height int
}

// NewTerminalSink takes over the terminal for a width x height preview.
func NewTerminalSink(width, height int) (*TerminalSink, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("failed to create terminal screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("failed to init terminal screen: %w", err)
	}
	return newTerminalSink(screen, width, height), nil
}

func newTerminalSink(screen tcell.Screen, width, height int) *TerminalSink {
	screen.HideCursor()
	screen.Clear()
	s := &TerminalSink{
		screen: screen,
		width:  width,
		height: height,
		done:   make(chan struct{}),
	}
	go s.pollEvents()
	return s
}

// Done is closed when the operator asks to quit from the preview.
func (s *TerminalSink) Done() <-chan struct{} {
	return s.done
}

func (s *TerminalSink) pollEvents() {
	for {
		ev := s.screen.PollEvent()
		switch ev := ev.(type) {
		case nil:
			return
		case *tcell.EventResize:
			s.screen.Sync()
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyCtrlC || ev.Key() == tcell.KeyEscape || ev.Rune() == 'q' {
				log.Info().Msg("quit requested from terminal preview")
				s.once.Do(func() { close(s.done) })
			}
		}
	}
}

// scale returns the pixel step between terminal cells so the whole frame
// fits the screen.
func (s *TerminalSink) scale() (sx, sy int) {
	cols, rows := s.screen.Size()
	sx, sy = 1, 1
	if cols > 0 && s.width > cols {
		sx = (s.width + cols - 1) / cols
	}
	if rows > 0 && s.height > 2*rows {
		sy = (s.height + 2*rows - 1) / (2 * rows)
	}
	return max(sx, sy), max(sx, sy)
}

func (s *TerminalSink) Present(frame []byte) error {
	if len(frame) < s.width*s.height*3 {
		return errors.New("terminal preview: short frame")
	}

	pixel := func(x, y int) tcell.Color {
		if y >= s.height {
			return tcell.ColorBlack
		}
		i := (y*s.width + x) * 3
		return tcell.NewRGBColor(int32(frame[i]), int32(frame[i+1]), int32(frame[i+2]))
	}

	sx, sy := s.scale()
	for cy := 0; 2*cy*sy < s.height; cy++ {
		for cx := 0; cx*sx < s.width; cx++ {
			top := pixel(cx*sx, 2*cy*sy)
			bottom := pixel(cx*sx, (2*cy+1)*sy)
			style := tcell.StyleDefault.Foreground(top).Background(bottom)
			s.screen.SetContent(cx, cy, upperHalf, nil, style)
		}
	}
	s.screen.Show()
	return nil
}

func (s *TerminalSink) Close() error {
	s.screen.Fini()
	return nil
}
