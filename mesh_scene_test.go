package main

import (
	"bytes"
	"testing"

	"terrasync/scenesync"
)

func TestUnitToByte(t *testing.T) {
	tests := []struct {
		in   float32
		want byte
	}{
		{-0.5, 0},
		{0, 0},
		{0.5, 128},
		{1, 255},
		{3, 255},
	}
	for _, tt := range tests {
		if got := unitToByte(tt.in); got != tt.want {
			t.Errorf("unitToByte(%v)=%d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestRGBToPixels(t *testing.T) {
	got := rgbToPixels([]float32{1, 0, 0, 0, 0.5, 1}, 2)
	want := []byte{255, 0, 0, 255, 0, 128, 255, 255}
	if !bytes.Equal(got, want) {
		t.Fatalf("pixels=%v, want %v", got, want)
	}
}

func TestRGBToPixelsShortInputLeavesZeros(t *testing.T) {
	got := rgbToPixels([]float32{1, 1, 1}, 2)
	if len(got) != 8 {
		t.Fatalf("len=%d, want 8", len(got))
	}
	if !bytes.Equal(got[4:], []byte{0, 0, 0, 0}) {
		t.Fatalf("missing triple should stay transparent, got %v", got[4:])
	}
}

func TestSceneToScreen(t *testing.T) {
	tests := []struct {
		x, y   float64
		sx, sy float64
	}{
		{0, 0, 400, 300},
		{-400, 300, 0, 0},
		{400, -300, 800, 600},
	}
	for _, tt := range tests {
		sx, sy := sceneToScreen(tt.x, tt.y, 800, 600)
		if sx != tt.sx || sy != tt.sy {
			t.Errorf("sceneToScreen(%v,%v)=(%v,%v), want (%v,%v)", tt.x, tt.y, sx, sy, tt.sx, tt.sy)
		}
	}
}

func TestLabelKeyQuantisesSize(t *testing.T) {
	clr := [3]float32{1, 0.5, 0}
	if labelKey("a", 12.1, clr) != labelKey("a", 11.9, clr) {
		t.Fatalf("sizes within a quarter point should share a key")
	}
	if labelKey("a", 12, clr) == labelKey("a", 12.5, clr) {
		t.Fatalf("half point steps should differ")
	}
	if labelKey("a", 12, clr) == labelKey("a", 12, [3]float32{0, 0, 1}) {
		t.Fatalf("colour should be part of the key")
	}
}

func TestMeshSceneStoresPendingState(t *testing.T) {
	s := newMeshScene(0.7, nil)
	s.SetTerrainColors(2, 1, []float32{0, 0, 0, 1, 1, 1})
	s.SetOwnershipColors(2, 1, []float32{1, 0, 0, 0, 1, 0})
	if !s.terrain.dirty || !s.owners.dirty {
		t.Fatalf("layers should be marked dirty")
	}
	if s.owners.w != 2 || s.owners.h != 1 {
		t.Fatalf("owners size=%dx%d, want 2x1", s.owners.w, s.owners.h)
	}
	if s.owners.pix[0] != 255 || s.owners.pix[5] != 255 {
		t.Fatalf("owner pixels=%v", s.owners.pix)
	}
}

func TestMeshSceneSetLabelsReplacesWholeSet(t *testing.T) {
	s := newMeshScene(0.7, nil)
	s.SetLabels([]scenesync.Label{{Text: "a"}, {Text: "b"}})
	held := s.labels
	s.SetLabels([]scenesync.Label{{Text: "c"}})
	if len(held) != 2 || held[0].Text != "a" || held[1].Text != "b" {
		t.Fatalf("earlier label set was modified: %+v", held)
	}
	if len(s.labels) != 1 || s.labels[0].Text != "c" {
		t.Fatalf("labels=%+v, want only c", s.labels)
	}
}
