package deepspeed

import (
	"math"
	"math/rand"
	"testing"
)

// Test basic memory allocation and deallocation
func TestMemoryAllocation(t *testing.T) {
	sizes := []int{100, 1000, 10000, 1000000}

	for _, size := range sizes {
		ptr, err := Malloc(size * 4)
		if err != nil {
			t.Fatalf("Failed to allocate %d bytes: %v", size*4, err)
		}

		// Verify we can access the memory
		slice := ptr.Float32()
		if len(slice) != size {
			t.Errorf("Expected slice length %d, got %d", size, len(slice))
		}

		// Write and read test
		for i := 0; i < min(100, size); i++ {
			slice[i] = float32(i)
		}

		for i := 0; i < min(100, size); i++ {
			if slice[i] != float32(i) {
				t.Errorf("Memory corruption at index %d", i)
			}
		}

		err = Free(ptr)
		if err != nil {
			t.Fatalf("Failed to free memory: %v", err)
		}
	}
}

// Test memory copy operations
func TestMemcpy(t *testing.T) {
	const N = 1000

	// Create host data
	h_src := make([]float32, N)
	h_dst := make([]float32, N)
	for i := 0; i < N; i++ {
		h_src[i] = rand.Float32()
	}

	// Allocate device memory
	d_src := MallocOrFail(t, N*4)
	d_dst := MallocOrFail(t, N*4)
	defer Free(d_src)
	defer Free(d_dst)

	// Test H2D copy
	err := Memcpy(d_src, h_src, N*4, MemcpyHostToDevice)
	if err != nil {
		t.Fatalf("H2D copy failed: %v", err)
	}

	// Test D2D copy
	err = Memcpy(d_dst, d_src, N*4, MemcpyDeviceToDevice)
	if err != nil {
		t.Fatalf("D2D copy failed: %v", err)
	}

	// Test D2H copy
	err = Memcpy(h_dst, d_dst, N*4, MemcpyDeviceToHost)
	if err != nil {
		t.Fatalf("D2H copy failed: %v", err)
	}

	// Verify data
	for i := 0; i < N; i++ {
		if math.Abs(float64(h_src[i]-h_dst[i])) > 1e-6 {
			t.Errorf("Data mismatch at index %d: %f vs %f", i, h_src[i], h_dst[i])
		}
	}
}

// Test memory copy with half precision and quantized element types
func TestMemcpyTypedSlices(t *testing.T) {
	const N = 256

	h_half := make([]uint16, N)
	for i := range h_half {
		h_half[i] = uint16(FromFloat32(float32(i) * 0.25))
	}

	d_half := MallocOrFail(t, N*2)
	defer Free(d_half)

	MemcpyOrFail(t, d_half, h_half, N*2, MemcpyHostToDevice)

	halfView := d_half.Float16()
	for i := 0; i < N; i++ {
		want := float32(i) * 0.25
		if got := halfView.GetFloat32(i); got != want {
			t.Fatalf("half element %d: got %f, want %f", i, got, want)
		}
	}

	h_q := make([]int8, N)
	for i := range h_q {
		h_q[i] = int8(i - 128)
	}

	d_q := MallocOrFail(t, N)
	defer Free(d_q)

	MemcpyOrFail(t, d_q, h_q, N, MemcpyHostToDevice)

	qView := d_q.Int8()
	for i := 0; i < N; i++ {
		if qView[i] != int8(i-128) {
			t.Fatalf("int8 element %d: got %d, want %d", i, qView[i], int8(i-128))
		}
	}

	h_back := make([]int8, N)
	MemcpyOrFail(t, h_back, d_q, N, MemcpyDeviceToHost)
	for i := 0; i < N; i++ {
		if h_back[i] != h_q[i] {
			t.Fatalf("round trip element %d: got %d, want %d", i, h_back[i], h_q[i])
		}
	}
}

// Test basic kernel launch
func TestKernelLaunch(t *testing.T) {
	const N = 10000

	// Allocate memory
	d_data := MallocOrFail(t, N*4)
	defer Free(d_data)

	// Initialize to zero
	slice := d_data.Float32()
	for i := 0; i < N; i++ {
		slice[i] = 0
	}

	// Launch kernel to set values
	kernel := KernelFunc(func(tid ThreadID, args ...interface{}) {
		idx := tid.Global()
		if idx < N {
			slice[idx] = float32(idx)
		}
	})

	LaunchOrFail(t, kernel, Dim3{X: (N + 255) / 256, Y: 1, Z: 1}, Dim3{X: 256, Y: 1, Z: 1})
	SynchronizeOrFail(t)

	// Verify results
	for i := 0; i < N; i++ {
		if slice[i] != float32(i) {
			t.Errorf("Incorrect value at index %d: expected %f, got %f", i, float32(i), slice[i])
		}
	}
}

func TestForEach(t *testing.T) {
	const N = 1000

	d_data := MallocOrFail(t, N*4)
	defer Free(d_data)

	slice := d_data.Float32()
	for i := 0; i < N; i++ {
		slice[i] = float32(i)
	}

	err := ForEach(d_data, N, func(idx int, val *float32) {
		*val = *val * 2
	})
	if err != nil {
		t.Fatalf("ForEach failed: %v", err)
	}
	SynchronizeOrFail(t)

	for i := 0; i < N; i++ {
		if slice[i] != float32(2*i) {
			t.Fatalf("ForEach result at %d: expected %f, got %f", i, float32(2*i), slice[i])
		}
	}
}

// Test zero-sized grid launches preserve stream ordering
func TestEmptyGridLaunch(t *testing.T) {
	kernel := KernelFunc(func(tid ThreadID, args ...interface{}) {
		t.Error("kernel should not run for an empty grid")
	})

	err := Launch(kernel, Dim3{X: 0, Y: 1, Z: 1}, Dim3{X: 256, Y: 1, Z: 1})
	if err != nil {
		t.Fatalf("Empty launch failed: %v", err)
	}
	SynchronizeOrFail(t)
}

// Test thread indexing helpers
func TestThreadIndexing(t *testing.T) {
	tid := ThreadID{
		BlockIdx:  Dim3{X: 2, Y: 0, Z: 0},
		ThreadIdx: Dim3{X: 3, Y: 1, Z: 0},
		BlockDim:  Dim3{X: 8, Y: 4, Z: 1},
		GridDim:   Dim3{X: 4, Y: 1, Z: 1},
	}

	if got := tid.Global(); got != 2*8+3 {
		t.Errorf("Global() = %d, want %d", got, 2*8+3)
	}
	if got := tid.Linear(); got != 1*8+3 {
		t.Errorf("Linear() = %d, want %d", got, 1*8+3)
	}

	if got := (Dim3{X: 8, Y: 4, Z: 2}).Size(); got != 64 {
		t.Errorf("Size() = %d, want 64", got)
	}
}

// Test error conditions
func TestErrorHandling(t *testing.T) {
	// Test double free
	ptr, _ := Malloc(100)
	err := Free(ptr)
	if err != nil {
		t.Fatalf("First free failed: %v", err)
	}

	err = Free(ptr)
	if err == nil {
		t.Error("Double free should have failed")
	}

	// Test invalid device
	err = SetDevice(1)
	if err == nil {
		t.Error("SetDevice(1) should have failed")
	}

	// Test device count
	count := GetDeviceCount()
	if count != 1 {
		t.Errorf("Expected 1 device, got %d", count)
	}

	// Active device is always the CPU device
	dev0 := GetDevice()
	if dev0 == nil || dev0.ID != 0 {
		t.Errorf("GetDevice() = %+v, want device 0", dev0)
	}

	// Device properties for the only device
	dev, err := GetDeviceProperties(0)
	if err != nil {
		t.Fatalf("GetDeviceProperties(0) failed: %v", err)
	}
	if dev.NumCores <= 0 {
		t.Error("Device should report at least one core")
	}

	_, err = GetDeviceProperties(3)
	if !IsInvalidArgError(err) {
		t.Errorf("GetDeviceProperties(3) = %v, want invalid argument error", err)
	}
}

// Test memory pool statistics
func TestMemoryPoolStats(t *testing.T) {
	// Get initial stats
	allocated1, _ := defaultContext.memory.GetStats()

	// Allocate some memory
	ptrs := make([]DevicePtr, 10)
	for i := range ptrs {
		ptrs[i], _ = Malloc(1024 * 1024) // 1MB each
	}

	// Check stats increased
	allocated2, peak2 := defaultContext.memory.GetStats()
	if allocated2 <= allocated1 {
		t.Error("Allocated memory should have increased")
	}
	if peak2 < allocated2 {
		t.Error("Peak should be at least current allocation")
	}

	// Free half
	for i := 0; i < 5; i++ {
		Free(ptrs[i])
	}

	// Check allocated decreased but peak unchanged
	allocated3, peak3 := defaultContext.memory.GetStats()
	if allocated3 >= allocated2 {
		t.Error("Allocated memory should have decreased")
	}
	if peak3 != peak2 {
		t.Error("Peak should not have changed")
	}

	// Clean up
	for i := 5; i < 10; i++ {
		Free(ptrs[i])
	}
}

// Test sub-region addressing through Offset
func TestDevicePtrOffset(t *testing.T) {
	const groups = 4
	const groupFloats = 8

	d := MallocOrFail(t, groups*groupFloats*4)
	defer Free(d)

	all := d.Float32()
	for i := range all {
		all[i] = float32(i)
	}

	second := d.Offset(groupFloats * 4)
	view := second.Float32()
	if len(view) != (groups-1)*groupFloats {
		t.Fatalf("Offset view length = %d, want %d", len(view), (groups-1)*groupFloats)
	}
	if view[0] != float32(groupFloats) {
		t.Errorf("Offset view[0] = %f, want %f", view[0], float32(groupFloats))
	}

	// Writes through the offset view land in the parent buffer
	view[0] = -1
	if all[groupFloats] != -1 {
		t.Error("Write through offset view did not alias parent buffer")
	}
}
