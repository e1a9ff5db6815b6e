// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package staging

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/datastage/lib/clock"
	"github.com/bureau-foundation/datastage/lib/mount"
	"github.com/bureau-foundation/datastage/lib/stagelock"
	"github.com/bureau-foundation/datastage/lib/testutil"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// Two storage tiers: /slow is an NFS export, /fast a local NVMe disk.
var tieredMounts = fakeMounts{
	"/slow": "nas.example.org:/export/datasets",
	"/fast": "/dev/nvme0n1p2",
}

type harness struct {
	coordinator *Coordinator
	clock       *clock.FakeClock
	logs        *testutil.LogBuffer
	space       *fakeSpace
	extractor   *fakeExtractor
	lockPath    string
}

func newHarness(t *testing.T, files fakeFiles, space *fakeSpace, configure ...func(*Options)) *harness {
	t.Helper()

	fake := clock.Fake(epoch)
	logs := &testutil.LogBuffer{}
	lockPath := filepath.Join(t.TempDir(), "uncompression.lock")
	extractor := &fakeExtractor{space: space, lockPath: lockPath}

	options := Options{
		Mounts:    tieredMounts,
		Space:     space,
		Extractor: extractor,
		Lock:      stagelock.New(lockPath, stagelock.Options{Clock: fake, Logger: logs.Logger()}),
		Clock:     fake,
		Logger:    logs.Logger(),
	}
	for _, apply := range configure {
		apply(&options)
	}

	coordinator, err := New(options)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	coordinator.stat = files.stat

	return &harness{
		coordinator: coordinator,
		clock:       fake,
		logs:        logs,
		space:       space,
		extractor:   extractor,
		lockPath:    lockPath,
	}
}

// run executes Run in a goroutine, advancing the fake clock one poll
// interval at a time until it returns.
func (h *harness) run(ctx context.Context, datasetPath, workingDir string) (Result, error) {
	done := make(chan struct{})
	var result Result
	var err error
	go func() {
		defer close(done)
		result, err = h.coordinator.Run(ctx, datasetPath, workingDir)
	}()
	for h.clock.WaitForTimersOrDone(1, done) {
		h.clock.Advance(time.Second)
	}
	<-done
	return result, err
}

func ample() *fakeSpace { return &fakeSpace{readings: []uint64{4096 * gibKB}} }

func TestRunStagesArchiveFromSlowStorage(t *testing.T) {
	t.Parallel()

	h := newHarness(t, fakeFiles{"/slow/euroc/MH_01_easy.zip": 2 << 30}, ample())

	result, err := h.run(context.Background(), "/slow/euroc/MH_01_easy", "/fast/work")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if result.Path != "/fast/work/MH_01_easy" {
		t.Errorf("Path = %q, want /fast/work/MH_01_easy", result.Path)
	}
	if !result.Staged || result.Archive != "/slow/euroc/MH_01_easy.zip" {
		t.Errorf("Result = %+v, want staged from the zip", result)
	}

	if len(h.extractor.calls) != 1 {
		t.Fatalf("extractor called %d times, want 1", len(h.extractor.calls))
	}
	call := h.extractor.calls[0]
	if call.archive != "/slow/euroc/MH_01_easy.zip" || call.destination != "/fast/work" {
		t.Errorf("extracted %s into %s", call.archive, call.destination)
	}
	if !call.lockHeld {
		t.Error("extraction ran without the staging lock")
	}
	if fileExists(h.lockPath) {
		t.Error("lock file still present after staging")
	}
}

func TestRunUsesDatasetInPlaceOnSameStorage(t *testing.T) {
	t.Parallel()

	h := newHarness(t, fakeFiles{}, ample())

	result, err := h.run(context.Background(), "/fast/euroc/MH_01_easy", "/fast/work")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if result.Path != "/fast/euroc/MH_01_easy" || result.Staged {
		t.Errorf("Result = %+v, want unchanged in-place path", result)
	}
	if len(h.extractor.calls) != 0 {
		t.Error("extractor called for an in-place dataset")
	}
	if h.space.calls != 0 {
		t.Error("free space checked for an in-place dataset")
	}
}

func TestRunFailsWithoutArchiveOnOtherStorage(t *testing.T) {
	t.Parallel()

	h := newHarness(t, fakeFiles{}, ample())

	result, err := h.run(context.Background(), "/slow/euroc/MH_01_easy", "/fast/work")
	if !errors.Is(err, ErrUnresolvableLocation) {
		t.Fatalf("Run() error = %v, want ErrUnresolvableLocation", err)
	}
	if result.Path != "" {
		t.Errorf("Path = %q on failure, want empty", result.Path)
	}
	if len(h.extractor.calls) != 0 || fileExists(h.lockPath) {
		t.Error("an unresolvable dataset touched the extractor or the lock")
	}
}

func TestRunPrefersArchiveOverDirectory(t *testing.T) {
	t.Parallel()

	// The uncompressed copy is on the fast disk too, but an archive
	// sits next to it: staging still happens.
	h := newHarness(t, fakeFiles{"/fast/euroc/MH_01_easy.zip": 1 << 20}, ample())

	result, err := h.run(context.Background(), "/fast/euroc/MH_01_easy", "/fast/work")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !result.Staged || result.Path != "/fast/work/MH_01_easy" {
		t.Errorf("Result = %+v, want staged into /fast/work", result)
	}
}

func TestRunTriesExtensionsInOrder(t *testing.T) {
	t.Parallel()

	h := newHarness(t,
		fakeFiles{"/slow/euroc/MH_01_easy.tar.zst": 1 << 20},
		ample(),
		func(options *Options) { options.Extensions = []string{".zip", ".tar.zst"} },
	)

	result, err := h.run(context.Background(), "/slow/euroc/MH_01_easy", "/fast/work")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if result.Archive != "/slow/euroc/MH_01_easy.tar.zst" {
		t.Errorf("Archive = %q, want the .tar.zst", result.Archive)
	}
	if result.Path != "/fast/work/MH_01_easy" {
		t.Errorf("Path = %q", result.Path)
	}
}

func TestRunReleasesLockWhenExtractionFails(t *testing.T) {
	t.Parallel()

	h := newHarness(t, fakeFiles{"/slow/euroc/MH_01_easy.zip": 1 << 30}, ample())
	failure := errors.New("7z: ERROR: Can not open the file as archive")
	h.extractor.err = failure

	_, err := h.run(context.Background(), "/slow/euroc/MH_01_easy", "/fast/work")

	var extractionError *ExtractionError
	if !errors.As(err, &extractionError) {
		t.Fatalf("Run() error = %v, want *ExtractionError", err)
	}
	if !errors.Is(err, failure) {
		t.Errorf("ExtractionError does not wrap the extractor's error")
	}
	if extractionError.Archive != "/slow/euroc/MH_01_easy.zip" {
		t.Errorf("ExtractionError.Archive = %q", extractionError.Archive)
	}
	if fileExists(h.lockPath) {
		t.Fatal("lock file left behind after a failed extraction")
	}
}

func TestRunSucceedsWhenLockReplacedDuringExtraction(t *testing.T) {
	t.Parallel()

	h := newHarness(t, fakeFiles{"/slow/euroc/MH_01_easy.zip": 1 << 30}, ample())
	h.extractor.during = func() {
		// An operator cleared the lock and another run took it.
		if err := os.WriteFile(h.lockPath, []byte("/slow/euroc/V1_01_easy.zip"), 0o644); err != nil {
			t.Error(err)
		}
	}

	result, err := h.run(context.Background(), "/slow/euroc/MH_01_easy", "/fast/work")
	if err != nil {
		t.Fatalf("Run() error = %v, want success once extraction finished", err)
	}
	if result.Path != "/fast/work/MH_01_easy" || !result.Staged {
		t.Errorf("Result = %+v, want the staged path", result)
	}
	if !fileExists(h.lockPath) {
		t.Error("other holder's lock file was removed")
	}
	if h.logs.Count("staging lock was replaced") != 1 {
		t.Errorf("missing replacement warning, logs:\n%s", h.logs.String())
	}
}

func TestRunWaitsForSpaceBeforeExtracting(t *testing.T) {
	t.Parallel()

	// 100 GiB archive; 10 GiB free, growing 20 GiB per poll.
	space := growingSpace(10*gibKB, 20*gibKB, 20)
	h := newHarness(t, fakeFiles{"/slow/euroc/MH_01_easy.zip": 100 << 30}, space)

	result, err := h.run(context.Background(), "/slow/euroc/MH_01_easy", "/fast/work")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if result.Path != "/fast/work/MH_01_easy" {
		t.Errorf("Path = %q", result.Path)
	}

	required := 150 * gibKB
	if len(h.extractor.calls) != 1 {
		t.Fatalf("extractor called %d times, want 1", len(h.extractor.calls))
	}
	if seen := h.extractor.calls[0].availableKB; seen < required {
		t.Errorf("extraction started with %d KB available, required %d", seen, required)
	}

	// 10, 30, ..., 150: eight checks, seven sleeps.
	if space.calls != 8 {
		t.Errorf("space checked %d times, want 8", space.calls)
	}
	if waited := h.clock.Now().Sub(epoch); waited != 7*time.Second {
		t.Errorf("waited %v, want 7s", waited)
	}
	if progress := h.logs.Count("waiting for free space"); progress != 7 {
		t.Errorf("logged %d progress lines, want 7:\n%s", progress, h.logs.String())
	}
	if h.logs.Count("sufficient space available") != 1 {
		t.Error("did not log that space became sufficient")
	}
}

func TestWaitForSpaceSilentWhileShrinking(t *testing.T) {
	t.Parallel()

	space := &fakeSpace{readings: []uint64{
		5 * gibKB, 4 * gibKB, 3 * gibKB, 5 * gibKB, 5*gibKB + gibKB/2, 6 * gibKB, 200 * gibKB,
	}}
	h := newHarness(t, fakeFiles{}, space)

	done := make(chan struct{})
	var err error
	go func() {
		defer close(done)
		err = h.coordinator.WaitForSpace(context.Background(), "/fast/work", 100*gibKB)
	}()
	for h.clock.WaitForTimersOrDone(1, done) {
		h.clock.Advance(time.Second)
	}
	<-done

	if err != nil {
		t.Fatalf("WaitForSpace() error: %v", err)
	}
	// Reported at 5 GiB and again at 6 GiB; the dip and the half-GiB
	// recovery are silent.
	if progress := h.logs.Count("waiting for free space"); progress != 2 {
		t.Errorf("logged %d progress lines, want 2:\n%s", progress, h.logs.String())
	}
}

func TestRunSpaceDeadline(t *testing.T) {
	t.Parallel()

	space := &fakeSpace{readings: []uint64{gibKB}}
	h := newHarness(t,
		fakeFiles{"/slow/euroc/MH_01_easy.zip": 10 << 30},
		space,
		func(options *Options) { options.SpaceDeadline = 5 * time.Second },
	)

	_, err := h.run(context.Background(), "/slow/euroc/MH_01_easy", "/fast/work")
	if !errors.Is(err, ErrSpaceTimeout) {
		t.Fatalf("Run() error = %v, want ErrSpaceTimeout", err)
	}
	if len(h.extractor.calls) != 0 {
		t.Error("extracted despite insufficient space")
	}
	if fileExists(h.lockPath) {
		t.Error("lock file left behind after the space wait timed out")
	}
}

func TestRunCanceledWhileWaitingForSpace(t *testing.T) {
	t.Parallel()

	h := newHarness(t, fakeFiles{"/slow/euroc/MH_01_easy.zip": 10 << 30}, &fakeSpace{readings: []uint64{gibKB}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := h.coordinator.Run(ctx, "/slow/euroc/MH_01_easy", "/fast/work")
		done <- err
	}()

	h.clock.WaitForTimers(1)
	cancel()

	err := testutil.RequireReceive(t, done, 5*time.Second, "Run did not observe cancellation")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if fileExists(h.lockPath) {
		t.Error("lock file left behind after cancellation")
	}
}

func TestRunPropagatesMountResolutionError(t *testing.T) {
	t.Parallel()

	h := newHarness(t, fakeFiles{}, ample())

	_, err := h.run(context.Background(), "/scratch/euroc/MH_01_easy", "/fast/work")
	var resolutionError *mount.ResolutionError
	if !errors.As(err, &resolutionError) {
		t.Fatalf("Run() error = %v, want *mount.ResolutionError", err)
	}
	if errors.Is(err, ErrUnresolvableLocation) {
		t.Error("a mount lookup failure was reported as an unresolvable location")
	}
}

func TestResolveRejectsNonRegularArchive(t *testing.T) {
	t.Parallel()

	h := newHarness(t, fakeFiles{"/slow/euroc/MH_01_easy.zip": -1}, ample())

	_, err := h.coordinator.Resolve(context.Background(), "/slow/euroc/MH_01_easy", "/fast/work")
	if err == nil || !strings.Contains(err.Error(), "not a regular file") {
		t.Fatalf("Resolve() error = %v, want not a regular file", err)
	}
}

func TestResolveDecision(t *testing.T) {
	t.Parallel()

	h := newHarness(t, fakeFiles{"/slow/euroc/V1_01_easy.zip": 3 << 30}, ample())

	decision, err := h.coordinator.Resolve(context.Background(), "/slow/euroc/V1_01_easy", "/fast/work")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if decision.Action != Stage || decision.ArchiveBytes != 3<<30 {
		t.Errorf("decision = %+v, want Stage of a 3 GiB archive", decision)
	}
	if decision.DatasetMount != "nas.example.org:/export/datasets" {
		t.Errorf("DatasetMount = %q", decision.DatasetMount)
	}
	if fileExists(h.lockPath) {
		t.Error("Resolve acquired the lock")
	}

	if _, err := h.coordinator.StageArchive(context.Background(), Decision{Action: InPlace}, "/fast/work"); err == nil {
		t.Error("StageArchive accepted an in-place decision")
	}
}

func TestPaddingOverride(t *testing.T) {
	t.Parallel()

	// 1 GiB free is enough for a 512 MiB archive without padding.
	noPadding := uint64(0)
	space := &fakeSpace{readings: []uint64{gibKB}}
	h := newHarness(t,
		fakeFiles{"/slow/euroc/MH_01_easy.zip": 512 << 20},
		space,
		func(options *Options) { options.PaddingKB = &noPadding },
	)

	if _, err := h.run(context.Background(), "/slow/euroc/MH_01_easy", "/fast/work"); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if space.calls != 1 {
		t.Errorf("space checked %d times, want 1", space.calls)
	}
}

func TestRequiredKB(t *testing.T) {
	t.Parallel()

	tests := []struct {
		bytes int64
		want  uint64
	}{
		{0, DefaultPaddingKB},
		{1, 1 + DefaultPaddingKB},
		{1024, 1 + DefaultPaddingKB},
		{1025, 2 + DefaultPaddingKB},
		{100 << 30, 100*gibKB + DefaultPaddingKB},
		{-5, DefaultPaddingKB},
	}
	for _, test := range tests {
		if got := RequiredKB(test.bytes, DefaultPaddingKB); got != test.want {
			t.Errorf("RequiredKB(%d) = %d, want %d", test.bytes, got, test.want)
		}
	}
	if DefaultPaddingKB != 50*1048576 {
		t.Errorf("DefaultPaddingKB = %d, want 50 GiB in KB", DefaultPaddingKB)
	}
}

func TestProgressThrottle(t *testing.T) {
	t.Parallel()

	throttle := progressThrottle{stepKB: gibKB}
	steps := []struct {
		availableKB uint64
		want        bool
	}{
		{gibKB / 2, false},
		{gibKB, true},
		{gibKB + gibKB/2, false},
		{gibKB / 4, false},
		{2 * gibKB, true},
		{2*gibKB + 1, false},
		{10 * gibKB, true},
	}
	for i, step := range steps {
		if got := throttle.observe(step.availableKB); got != step.want {
			t.Errorf("step %d: observe(%d) = %v, want %v", i, step.availableKB, got, step.want)
		}
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	t.Parallel()

	lock := stagelock.New(filepath.Join(t.TempDir(), "lock"), stagelock.Options{})
	complete := Options{Mounts: tieredMounts, Space: ample(), Extractor: &fakeExtractor{}, Lock: lock}

	tests := map[string]func(*Options){
		"mount resolver": func(o *Options) { o.Mounts = nil },
		"space probe":    func(o *Options) { o.Space = nil },
		"extractor":      func(o *Options) { o.Extractor = nil },
		"lock":           func(o *Options) { o.Lock = nil },
	}
	for name, remove := range tests {
		options := complete
		remove(&options)
		if _, err := New(options); err == nil || !strings.Contains(err.Error(), name) {
			t.Errorf("New() without %s: error = %v", name, err)
		}
	}
	if _, err := New(complete); err != nil {
		t.Errorf("New() with all collaborators: %v", err)
	}
}

func TestStagedPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		dataset, working, want string
	}{
		{"/slow/euroc/MH_01_easy", "/fast/work", "/fast/work/MH_01_easy"},
		{"/slow/euroc/MH_01_easy/", "/fast/work/", "/fast/work/MH_01_easy"},
		{"MH_01_easy", "/fast/work", "/fast/work/MH_01_easy"},
	}
	for _, test := range tests {
		got, err := StagedPath(test.dataset, test.working)
		if err != nil {
			t.Fatalf("StagedPath(%q, %q) error: %v", test.dataset, test.working, err)
		}
		if got != test.want {
			t.Errorf("StagedPath(%q, %q) = %q, want %q", test.dataset, test.working, got, test.want)
		}
	}
}
