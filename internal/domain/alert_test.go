package domain

import "testing"

func TestNewAlertConfig_DirectionAuto(t *testing.T) {
	up := NewAlertConfig("BTC/USDT", d("70000"), d("68000"), false)
	if up.Direction != "UP" {
		t.Errorf("Expected UP, got %s", up.Direction)
	}

	down := NewAlertConfig("BTC/USDT", d("65000"), d("68000"), false)
	if down.Direction != "DOWN" {
		t.Errorf("Expected DOWN, got %s", down.Direction)
	}
}

func TestAlertConfig_CheckCondition(t *testing.T) {
	a := NewAlertConfig("BTC/USDT", d("70000"), d("68000"), false)

	if a.CheckCondition(d("69999")) {
		t.Error("UP alert should not trigger below target")
	}
	if !a.CheckCondition(d("70000")) {
		t.Error("UP alert should trigger at target")
	}
	if !a.CheckCondition(d("71000")) {
		t.Error("UP alert should trigger above target")
	}

	a.SetActive(false)
	if a.CheckCondition(d("71000")) {
		t.Error("Inactive alert should never trigger")
	}
}
