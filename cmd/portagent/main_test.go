package main

import (
	"testing"

	"github.com/oceanobs/portagent/pkg/portagent"
)

func TestFillPositionalTCPWithoutPortPrefix(t *testing.T) {
	var cfg portagent.Config
	if err := fillPositional(&cfg, "tcp", []string{"10.1.1.1", "2101"}); err != nil {
		t.Fatalf("fillPositional: %v", err)
	}
	if cfg.InstrumentAddr != "10.1.1.1" || cfg.InstrumentPort != 2101 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.DataPort != 0 || cfg.CommandPort != 0 {
		t.Fatalf("expected ephemeral ports when prefix omitted, got %+v", cfg)
	}
}

func TestFillPositionalTCPWithPortPrefix(t *testing.T) {
	var cfg portagent.Config
	if err := fillPositional(&cfg, "tcp", []string{"4000", "4001", "10.1.1.1", "2101"}); err != nil {
		t.Fatalf("fillPositional: %v", err)
	}
	if cfg.DataPort != 4000 || cfg.CommandPort != 4001 {
		t.Fatalf("expected explicit ports, got %+v", cfg)
	}
	if cfg.InstrumentAddr != "10.1.1.1" || cfg.InstrumentPort != 2101 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestFillPositionalRSN(t *testing.T) {
	var cfg portagent.Config
	if err := fillPositional(&cfg, "rsn", []string{"10.1.1.1", "2101", "2102"}); err != nil {
		t.Fatalf("fillPositional: %v", err)
	}
	if cfg.InstrumentAddr != "10.1.1.1" || cfg.InstrumentPort != 2101 || cfg.DigiPort != 2102 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestFillPositionalBOTPT(t *testing.T) {
	var cfg portagent.Config
	if err := fillPositional(&cfg, "botpt", []string{"10.1.1.1", "2101", "2102"}); err != nil {
		t.Fatalf("fillPositional: %v", err)
	}
	if cfg.InstrumentAddr != "10.1.1.1" || cfg.RxPort != 2101 || cfg.TxPort != 2102 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestFillPositionalDatalogFiles(t *testing.T) {
	var cfg portagent.Config
	if err := fillPositional(&cfg, "datalog", []string{"/data/a.bin", "/data/b.bin"}); err != nil {
		t.Fatalf("fillPositional: %v", err)
	}
	if len(cfg.Files) != 2 {
		t.Fatalf("expected literal paths passed through when no glob matches, got %+v", cfg.Files)
	}
}

func TestFillPositionalDatalogWithPortPrefix(t *testing.T) {
	var cfg portagent.Config
	if err := fillPositional(&cfg, "datalog", []string{"4000", "4001", "/data/a.bin"}); err != nil {
		t.Fatalf("fillPositional: %v", err)
	}
	if cfg.DataPort != 4000 || cfg.CommandPort != 4001 {
		t.Fatalf("expected port prefix recognized, got %+v", cfg)
	}
	if len(cfg.Files) != 1 || cfg.Files[0] != "/data/a.bin" {
		t.Fatalf("unexpected files: %+v", cfg.Files)
	}
}

func TestFillPositionalRejectsWrongArity(t *testing.T) {
	var cfg portagent.Config
	if err := fillPositional(&cfg, "tcp", []string{"only-one-arg"}); err == nil {
		t.Fatal("expected an error for wrong argument count")
	}
}
