/*
 * Copyright 2025 SREDiag Authors
 * Copyright 2023 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package shm

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/valyala/bytebufferpool"

	internalshm "github.com/srediag/plugin-shmdata/internal/shm"
)

type logger struct {
	name      string
	out       io.Writer
	callDepth int
}

var (
	internalLogger = &logger{"shm", os.Stdout, 3}
	level          atomic.Int32

	magenta = string([]byte{27, 91, 57, 53, 109}) // Trace
	green   = string([]byte{27, 91, 57, 50, 109}) // Debug
	blue    = string([]byte{27, 91, 57, 52, 109}) // Info
	yellow  = string([]byte{27, 91, 57, 51, 109}) // Warn
	red     = string([]byte{27, 91, 57, 49, 109}) // Error
	reset   = string([]byte{27, 91, 48, 109})

	colors = []string{
		magenta,
		green,
		blue,
		yellow,
		red,
	}

	levelName = []string{
		"Trace",
		"Debug",
		"Info",
		"Warn",
		"Error",
	}
)

const (
	levelTrace = iota
	levelDebug
	levelInfo
	levelWarn
	levelError
	levelNoPrint
)

func init() {
	level.Store(levelWarn)
	if v := os.Getenv("PLUGIN_SHM_LOG_LEVEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= levelTrace && n <= levelNoPrint {
			level.Store(int32(n))
		}
	}
}

// SetLogLevel changes the internal logger's level. The default level is Warn;
// the process env `PLUGIN_SHM_LOG_LEVEL` also sets it (0 Trace .. 5 silent).
func SetLogLevel(l int) {
	if l >= levelTrace && l <= levelNoPrint {
		level.Store(int32(l))
	}
}

func enabled(l int) bool {
	return int(level.Load()) <= l
}

func (l *logger) logf(lv int, format string, a ...interface{}) {
	if !enabled(lv) {
		return
	}
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	l.prefix(buf, lv)
	_, _ = fmt.Fprintf(buf, format, a...)
	_, _ = buf.WriteString(reset)
	_ = buf.WriteByte('\n')
	if _, err := l.out.Write(buf.B); err != nil {
		fmt.Fprintf(os.Stderr, "logger write failed: %v\n", err)
	}
}

func (l *logger) errorf(format string, a ...interface{}) { l.logf(levelError, format, a...) }

func (l *logger) warnf(format string, a ...interface{}) { l.logf(levelWarn, format, a...) }

func (l *logger) infof(format string, a ...interface{}) { l.logf(levelInfo, format, a...) }

func (l *logger) debugf(format string, a ...interface{}) { l.logf(levelDebug, format, a...) }

func (l *logger) tracef(format string, a ...interface{}) { l.logf(levelTrace, format, a...) }

func (l *logger) prefix(buf *bytebufferpool.ByteBuffer, lv int) {
	_, _ = buf.WriteString(colors[lv])
	_, _ = buf.WriteString(levelName[lv])
	_ = buf.WriteByte(' ')
	buf.B = time.Now().AppendFormat(buf.B, "2006-01-02 15:04:05.999999")
	_ = buf.WriteByte(' ')
	_, _ = buf.WriteString(l.location())
	_ = buf.WriteByte(' ')
	_, _ = buf.WriteString(l.name)
	_ = buf.WriteByte(' ')
}

func (l *logger) location() string {
	// logf and the level helper sit between the caller and runtime.Caller.
	_, file, line, ok := runtime.Caller(l.callDepth + 1)
	if !ok {
		file = "???"
		line = 0
	}
	file = filepath.Base(file)
	return file + ":" + strconv.Itoa(line)
}

// DebugRegionDetail attaches to the region named name and prints its header to w.
func DebugRegionDetail(w io.Writer, name string) {
	ctx := context.Background()
	mr, err := internalshm.MapRegion(ctx, internalshm.MapOptions{Name: name})
	if err != nil {
		fmt.Fprintln(w, err)
		return
	}
	defer func() { _ = internalshm.UnmapRegion(ctx, mr) }()
	mem := mr.Addr
	h, err := DecodeHeader(mem)
	if err != nil {
		fmt.Fprintln(w, err)
		return
	}
	fmt.Fprintf(w, "name:%s size:%d reserved:%d currentPointer:%d clearCount:%d\n",
		name, len(mem), len(mem)-HeaderSize, h.CurrentPointer, h.ClearCount)
	for i, pid := range h.PIDs {
		if pid != 0 {
			fmt.Fprintf(w, "pid[%d]:%d\n", i, pid)
		}
	}
}
