// Package models defines the value types shared by the segmentation pipeline:
// raw scan volumes, pseudo-RGB volumes, per-slice tensors, stacked batches and
// integer label masks. All types are plain structs with a flat backing array
// and explicit dimensions in row-major order.
package models

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrShapeMismatch indicates that two arrays which must share a shape
	// (e.g. a scan volume and its mask) have different dimensions.
	ErrShapeMismatch = errors.New("models: shape mismatch")

	// ErrDepthNotOne is returned by SqueezeDepth on a multi-slice mask.
	ErrDepthNotOne = errors.New("models: depth is not 1")
)

// Device identifies where tensor computation should be placed.
type Device string

const (
	DeviceCPU  Device = "cpu"
	DeviceCUDA Device = "cuda"
)

// ParseDevice validates a device name from configuration.
// An empty name defaults to the CPU.
func ParseDevice(name string) (Device, error) {
	switch Device(name) {
	case "":
		return DeviceCPU, nil
	case DeviceCPU, DeviceCUDA:
		return Device(name), nil
	}
	return "", fmt.Errorf("models: unknown device %q", name)
}

// Volume is a 3-D scalar intensity array with axes (depth, height, width).
// It is the source of truth for one MRI scan and is never mutated after load.
type Volume struct {
	Data   []float64
	Depth  int
	Height int
	Width  int
}

// NewVolume allocates a zero-filled volume.
func NewVolume(depth, height, width int) *Volume {
	return &Volume{
		Data:   make([]float64, depth*height*width),
		Depth:  depth,
		Height: height,
		Width:  width,
	}
}

// At returns the voxel intensity at (z, y, x).
func (v *Volume) At(z, y, x int) float64 {
	return v.Data[z*v.Height*v.Width+y*v.Width+x]
}

// Set writes the voxel intensity at (z, y, x).
func (v *Volume) Set(z, y, x int, val float64) {
	v.Data[z*v.Height*v.Width+y*v.Width+x] = val
}

// Slice returns a view of the z-th 2-D cross-section (length Height*Width).
func (v *Volume) Slice(z int) []float64 {
	n := v.Height * v.Width
	return v.Data[z*n : (z+1)*n]
}

// SameShape reports whether the mask has the same (D,H,W) as the volume.
func (v *Volume) SameShape(m *MaskVolume) bool {
	return v.Depth == m.Depth && v.Height == m.Height && v.Width == m.Width
}

// ColoredVolume is a pseudo-RGB rendering of a Volume, shape (D,H,W,3) in
// channel-last order with values in [0,255]. It is transient: recomputed for
// every evaluation call and discarded afterwards.
type ColoredVolume struct {
	Data   []float64
	Depth  int
	Height int
	Width  int
}

// NewColoredVolume allocates a zero-filled colored volume.
func NewColoredVolume(depth, height, width int) *ColoredVolume {
	return &ColoredVolume{
		Data:   make([]float64, depth*height*width*3),
		Depth:  depth,
		Height: height,
		Width:  width,
	}
}

// At returns channel c of the voxel at (z, y, x).
func (c *ColoredVolume) At(z, y, x, ch int) float64 {
	return c.Data[((z*c.Height+y)*c.Width+x)*3+ch]
}

// Slice returns a view of the z-th slice (length Height*Width*3, channel-last).
func (c *ColoredVolume) Slice(z int) []float64 {
	n := c.Height * c.Width * 3
	return c.Data[z*n : (z+1)*n]
}

// MaskVolume is a 3-D integer label array with axes (depth, height, width).
// Label 0 is background, 1 is foreground (blood vessel). The same type carries
// raw ground-truth masks, transformed mask stacks and model predictions.
type MaskVolume struct {
	Data   []int64
	Depth  int
	Height int
	Width  int
}

// NewMaskVolume allocates a zero-filled mask volume.
func NewMaskVolume(depth, height, width int) *MaskVolume {
	return &MaskVolume{
		Data:   make([]int64, depth*height*width),
		Depth:  depth,
		Height: height,
		Width:  width,
	}
}

// At returns the label at (z, y, x).
func (m *MaskVolume) At(z, y, x int) int64 {
	return m.Data[z*m.Height*m.Width+y*m.Width+x]
}

// Set writes the label at (z, y, x).
func (m *MaskVolume) Set(z, y, x int, val int64) {
	m.Data[z*m.Height*m.Width+y*m.Width+x] = val
}

// Slice returns a view of the z-th label plane (length Height*Width).
func (m *MaskVolume) Slice(z int) []int64 {
	n := m.Height * m.Width
	return m.Data[z*n : (z+1)*n]
}

// Mask2D is a single 2-D label mask.
type Mask2D struct {
	Data   []int64
	Height int
	Width  int
}

// SqueezeDepth collapses a single-slice mask volume to a 2-D mask. It is the
// explicit counterpart of the implicit squeeze a depth-1 stack would otherwise
// undergo; callers holding a multi-slice volume get ErrDepthNotOne.
func (m *MaskVolume) SqueezeDepth() (*Mask2D, error) {
	if m.Depth != 1 {
		return nil, fmt.Errorf("%w: depth %d", ErrDepthNotOne, m.Depth)
	}
	return &Mask2D{Data: m.Data, Height: m.Height, Width: m.Width}, nil
}

// SliceTensor is a single transformed 2-D slice in channel-first (C,h,w)
// layout. Image slices carry 3 float channels in [0,1]; during joint
// augmentation a fourth channel may carry integer-valued labels.
type SliceTensor struct {
	Data     []float64
	Channels int
	Height   int
	Width    int
}

// NewSliceTensor allocates a zero-filled slice tensor.
func NewSliceTensor(channels, height, width int) *SliceTensor {
	return &SliceTensor{
		Data:     make([]float64, channels*height*width),
		Channels: channels,
		Height:   height,
		Width:    width,
	}
}

// At returns the value at channel c, row y, column x.
func (s *SliceTensor) At(c, y, x int) float64 {
	return s.Data[(c*s.Height+y)*s.Width+x]
}

// Set writes the value at channel c, row y, column x.
func (s *SliceTensor) Set(c, y, x int, val float64) {
	s.Data[(c*s.Height+y)*s.Width+x] = val
}

// Channel returns a view of one channel plane (length Height*Width).
func (s *SliceTensor) Channel(c int) []float64 {
	n := s.Height * s.Width
	return s.Data[c*n : (c+1)*n]
}

// BatchTensor is a stack of SliceTensors along a new leading axis, shape
// (N,C,h,w). It is the unit consumed by the model: N is the volume depth.
// The Device field records placement; implementations of the model boundary
// check it against their own placement before computing.
type BatchTensor struct {
	Data     []float64
	N        int
	Channels int
	Height   int
	Width    int
	Device   Device
}

// NewBatchTensor allocates a zero-filled batch on the CPU.
func NewBatchTensor(n, channels, height, width int) *BatchTensor {
	return &BatchTensor{
		Data:     make([]float64, n*channels*height*width),
		N:        n,
		Channels: channels,
		Height:   height,
		Width:    width,
		Device:   DeviceCPU,
	}
}

// At returns the value at batch index n, channel c, row y, column x.
func (b *BatchTensor) At(n, c, y, x int) float64 {
	return b.Data[((n*b.Channels+c)*b.Height+y)*b.Width+x]
}

// Set writes the value at batch index n, channel c, row y, column x.
func (b *BatchTensor) Set(n, c, y, x int, val float64) {
	b.Data[((n*b.Channels+c)*b.Height+y)*b.Width+x] = val
}

// Item returns a view of the n-th slice as a SliceTensor sharing storage.
func (b *BatchTensor) Item(n int) *SliceTensor {
	size := b.Channels * b.Height * b.Width
	return &SliceTensor{
		Data:     b.Data[n*size : (n+1)*size],
		Channels: b.Channels,
		Height:   b.Height,
		Width:    b.Width,
	}
}

// To records device placement for the batch and returns it for chaining.
func (b *BatchTensor) To(device Device) *BatchTensor {
	b.Device = device
	return b
}

// StackSlices stacks per-slice tensors along a new leading axis. All slices
// must share (C,h,w).
func StackSlices(slices []*SliceTensor) (*BatchTensor, error) {
	if len(slices) == 0 {
		return nil, fmt.Errorf("models: cannot stack zero slices")
	}
	first := slices[0]
	batch := NewBatchTensor(len(slices), first.Channels, first.Height, first.Width)
	size := first.Channels * first.Height * first.Width
	for i, s := range slices {
		if s.Channels != first.Channels || s.Height != first.Height || s.Width != first.Width {
			return nil, fmt.Errorf("%w: slice %d is (%d,%d,%d), want (%d,%d,%d)",
				ErrShapeMismatch, i, s.Channels, s.Height, s.Width,
				first.Channels, first.Height, first.Width)
		}
		copy(batch.Data[i*size:(i+1)*size], s.Data)
	}
	return batch, nil
}

// ConcatChannels concatenates two batches along the channel axis. Both must
// share (N,h,w). The result inherits the device of the first operand.
func ConcatChannels(a, b *BatchTensor) (*BatchTensor, error) {
	if a.N != b.N || a.Height != b.Height || a.Width != b.Width {
		return nil, fmt.Errorf("%w: (%d,%d,%d) vs (%d,%d,%d)",
			ErrShapeMismatch, a.N, a.Height, a.Width, b.N, b.Height, b.Width)
	}
	out := NewBatchTensor(a.N, a.Channels+b.Channels, a.Height, a.Width)
	out.Device = a.Device
	plane := a.Height * a.Width
	for n := 0; n < a.N; n++ {
		dst := out.Data[n*out.Channels*plane:]
		copy(dst[:a.Channels*plane], a.Data[n*a.Channels*plane:(n+1)*a.Channels*plane])
		copy(dst[a.Channels*plane:(a.Channels+b.Channels)*plane], b.Data[n*b.Channels*plane:(n+1)*b.Channels*plane])
	}
	return out, nil
}

// SplitChannels splits a batch after channel c into two batches sharing no
// storage with the input.
func (b *BatchTensor) SplitChannels(c int) (*BatchTensor, *BatchTensor, error) {
	if c <= 0 || c >= b.Channels {
		return nil, nil, fmt.Errorf("models: split channel %d out of range (0,%d)", c, b.Channels)
	}
	left := NewBatchTensor(b.N, c, b.Height, b.Width)
	right := NewBatchTensor(b.N, b.Channels-c, b.Height, b.Width)
	left.Device = b.Device
	right.Device = b.Device
	plane := b.Height * b.Width
	for n := 0; n < b.N; n++ {
		src := b.Data[n*b.Channels*plane:]
		copy(left.Data[n*c*plane:(n+1)*c*plane], src[:c*plane])
		copy(right.Data[n*(b.Channels-c)*plane:(n+1)*(b.Channels-c)*plane], src[c*plane:b.Channels*plane])
	}
	return left, right, nil
}

// ArgmaxChannel reduces a (N,C,h,w) batch of per-pixel class scores to a
// (N,h,w) integer label volume by taking the channel index of the maximum
// score at every pixel. Ties resolve to the lowest class index.
func (b *BatchTensor) ArgmaxChannel() *MaskVolume {
	out := NewMaskVolume(b.N, b.Height, b.Width)
	for n := 0; n < b.N; n++ {
		for y := 0; y < b.Height; y++ {
			for x := 0; x < b.Width; x++ {
				best := 0
				bestVal := math.Inf(-1)
				for c := 0; c < b.Channels; c++ {
					if v := b.At(n, c, y, x); v > bestVal {
						bestVal = v
						best = c
					}
				}
				out.Set(n, y, x, int64(best))
			}
		}
	}
	return out
}
