package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// ErrServiceNotFound is returned when the MediaPipe service script is missing.
var ErrServiceNotFound = errors.New("mediapipe_service.py not found")

// idleShutdown is how long an unused MediaPipe process is kept alive.
const idleShutdown = 30 * time.Second

// MediaPipeDetector implements Detector using a Python MediaPipe subprocess.
//
// Wire protocol: for each frame the detector writes a 4-byte big-endian length
// followed by a JPEG image to the process stdin, then reads one JSON line
// {"hands":[{"points":[{"x":..,"y":..,"z":..}],"handedness":..,"score":..}]}.
type MediaPipeDetector struct {
	config     Config
	scriptPath string
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	stdout     *bufio.Reader
	mu         sync.Mutex
	started    bool
	lastUsed   time.Time
	idleTimer  *time.Timer
}

// NewMediaPipeDetector creates a new MediaPipe detector.
// The Python process is started lazily on first detection.
func NewMediaPipeDetector(config Config) (*MediaPipeDetector, error) {
	scriptPath := findMediaPipeScript()
	if scriptPath == "" {
		return nil, ErrServiceNotFound
	}

	return &MediaPipeDetector{
		config:     config,
		scriptPath: scriptPath,
	}, nil
}

// Detect analyzes a frame and returns detected hand landmarks in the order
// reported by MediaPipe.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	if frame == nil || frame.Empty() {
		return nil, errors.New("empty frame")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureStarted(); err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()

	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := d.stdin.Write(length); err != nil {
		d.abort()
		return nil, fmt.Errorf("write length: %w", err)
	}
	if _, err := d.stdin.Write(data); err != nil {
		d.abort()
		return nil, fmt.Errorf("write data: %w", err)
	}

	line, err := d.stdout.ReadString('\n')
	if err != nil {
		d.abort()
		return nil, fmt.Errorf("read response: %w", err)
	}

	var response struct {
		Hands []jsonHand `json:"hands"`
	}
	if err := json.Unmarshal([]byte(line), &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	result := make([]HandLandmarks, len(response.Hands))
	for i, h := range response.Hands {
		result[i] = h.toHandLandmarks()
	}

	d.lastUsed = time.Now()
	d.resetIdleTimer()

	return result, nil
}

// Close shuts down the Python process.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

// args builds the service command line from the detector configuration.
func (d *MediaPipeDetector) args() []string {
	args := []string{
		d.scriptPath,
		"--max-hands", strconv.Itoa(d.config.MaxHands),
		"--min-detection", strconv.FormatFloat(d.config.MinConfidence, 'f', -1, 64),
		"--min-tracking", strconv.FormatFloat(d.config.MinTrackingConf, 'f', -1, 64),
	}
	if d.config.StaticImage {
		args = append(args, "--static")
	}
	return args
}

func (d *MediaPipeDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	// Use virtual environment Python if available
	pythonPath := findVenvPython()
	if pythonPath == "" {
		pythonPath = "python3"
	}

	d.cmd = exec.Command(pythonPath, d.args()...)

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("start mediapipe service: %w", err)
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true
	d.lastUsed = time.Now()

	return nil
}

// abort tears down a process whose pipe is out of sync so the next Detect
// starts a fresh one.
func (d *MediaPipeDetector) abort() {
	if d.cmd != nil && d.cmd.Process != nil {
		d.cmd.Process.Kill()
	}
	d.shutdown()
}

func (d *MediaPipeDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	return err
}

func (d *MediaPipeDetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(idleShutdown, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.shutdown()
	})
}

func findMediaPipeScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		"scripts/mediapipe_service.py",
		"../scripts/mediapipe_service.py",
		filepath.Join(execDir, "scripts/mediapipe_service.py"),
		filepath.Join(os.Getenv("HOME"), ".mudra/scripts/mediapipe_service.py"),
	}

	return firstExisting(candidates)
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		"../../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".mudra/venv/bin/python"),
	}

	return firstExisting(candidates)
}

func firstExisting(paths []string) string {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// jsonHand represents the JSON structure from the Python service.
type jsonHand struct {
	Points     []jsonPoint `json:"points"`
	Handedness string      `json:"handedness"`
	Score      float64     `json:"score"`
}

type jsonPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// toHandLandmarks keeps every reported point. Short sets are passed through
// so the feature extractor can reject them.
func (h jsonHand) toHandLandmarks() HandLandmarks {
	lm := HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
		Points:     make([]Point3D, len(h.Points)),
	}

	for i, p := range h.Points {
		lm.Points[i] = Point3D{X: p.X, Y: p.Y, Z: p.Z}
	}

	return lm
}
