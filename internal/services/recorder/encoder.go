package recorder

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"vision-annotator-go/internal/config"
)

// chunkEncoder pipes raw BGR frames into an ffmpeg process that emits a
// fragmented MP4 on stdout. Fragmented output keeps every chunk prefix a
// valid streamable file, so concatenated segments play without remuxing.
type chunkEncoder struct {
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	frameSize int

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// startChunkEncoder launches ffmpeg for the given frame geometry. Every
// chunk read from stdout is handed to sink in arrival order.
func startChunkEncoder(cfg *config.Config, width, height int, sink func([]byte)) (*chunkEncoder, error) {
	args := []string{
		"-f", "rawvideo",
		"-pix_fmt", "bgr24",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", strconv.Itoa(cfg.RecordingFPS),
		"-i", "-",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-movflags", "frag_keyframe+empty_moov",
		"-f", "mp4",
		"-loglevel", "warning",
		"pipe:1",
	}

	cmd := exec.Command(cfg.FFmpegBin, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	enc := &chunkEncoder{
		cmd:       cmd,
		stdin:     stdin,
		frameSize: width * height * 3,
		done:      make(chan struct{}),
	}

	go enc.drain(stdout, cfg.SegmentChunkSize, sink)

	log.Info().
		Int("width", width).
		Int("height", height).
		Int("fps", cfg.RecordingFPS).
		Msg("Recording encoder started")
	return enc, nil
}

// drain reads encoded output until ffmpeg closes its stdout.
func (e *chunkEncoder) drain(stdout io.Reader, chunkSize int, sink func([]byte)) {
	defer close(e.done)

	buf := make([]byte, chunkSize)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			sink(chunk)
		}
		if err != nil {
			if err != io.EOF {
				log.Debug().Err(err).Msg("Encoder stdout closed")
			}
			return
		}
	}
}

// write sends one raw frame to ffmpeg. Frames with unexpected geometry are
// skipped rather than corrupting the stream.
func (e *chunkEncoder) write(data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return fmt.Errorf("encoder closed")
	}
	if len(data) != e.frameSize {
		log.Debug().Int("actual", len(data)).Int("expected", e.frameSize).Msg("Frame size mismatch - skipping frame")
		return nil
	}

	_, err := e.stdin.Write(data)
	return err
}

// stop closes stdin so ffmpeg flushes its trailer, then waits for the
// process and the stdout drain to finish. Force-kills after a grace period.
func (e *chunkEncoder) stop() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		<-e.done
		return
	}
	e.closed = true
	e.stdin.Close()
	e.mu.Unlock()

	waited := make(chan error, 1)
	go func() { waited <- e.cmd.Wait() }()

	select {
	case err := <-waited:
		if err != nil {
			log.Debug().Err(err).Msg("ffmpeg exited with error")
		}
	case <-time.After(5 * time.Second):
		if e.cmd.Process != nil {
			e.cmd.Process.Signal(os.Interrupt)
			select {
			case <-waited:
			case <-time.After(2 * time.Second):
				e.cmd.Process.Kill()
				<-waited
			}
		}
		log.Warn().Msg("ffmpeg did not exit promptly during encoder stop")
	}

	<-e.done
}
