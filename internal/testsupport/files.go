package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// stubWorker mimics the real worker's contract: it accepts the default flag
// set, prints "<kind> succeed" for image and video outputs and exits 0, and
// fails on anything it does not understand. Every invocation is appended to
// the calls file next to the script.
const stubWorker = `#!/bin/sh
echo "$*" >> "$(dirname "$0")/worker.calls"
out=""
while [ $# -gt 0 ]; do
  case "$1" in
    -o|--output-path)
      [ $# -ge 2 ] || { echo "missing value for $1" >&2; exit 2; }
      out="$2"; shift 2 ;;
    -s|-t|--source-paths|--target-path|--processors)
      [ $# -ge 2 ] || { echo "missing value for $1" >&2; exit 2; }
      shift 2 ;;
    --headless|--keep-temp|--skip-audio)
      shift ;;
    --sleep)
      sleep "$2"; shift 2 ;;
    --print)
      echo "$2"; shift 2 ;;
    *)
      echo "unrecognized argument: $1" >&2; exit 2 ;;
  esac
done
case "$out" in
  *.jpg|*.jpeg|*.png|*.webp|*.bmp) echo "image succeed" ;;
  *.mp4|*.mov|*.mkv|*.avi|*.webm) echo "video succeed" ;;
  *) echo "processing failed" >&2; exit 1 ;;
esac
`

// WriteStubWorker writes the stub worker into dir and returns its path.
func WriteStubWorker(t testing.TB, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "worker")
	WriteExecutable(t, path, stubWorker)
	return path
}

// StubWorkerCalls returns one line per stub worker invocation, in order.
func StubWorkerCalls(t testing.TB, workerPath string) []string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(filepath.Dir(workerPath), "worker.calls"))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("read worker calls: %v", err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

// WriteExecutable writes an executable script at path, creating parents.
func WriteExecutable(t testing.TB, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o755); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
