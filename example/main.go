package main

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"github.com/Etezazi-Industries/RFQ-Gen/pkg/application/dto"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/application/services/generation"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/entities"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/infrastructure/events"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/infrastructure/logging"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/infrastructure/repositories/memory"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/interfaces/cli/output"
)

const customer entities.Handle = 100

func main() {
	ctx := context.Background()
	logger := logging.NewDefault()
	defer func() { _ = logger.Sync() }()

	// In-memory ERP whose quote template carries the stock operation sequences
	ops := entities.DefaultOperationSequences()
	store := memory.NewStore(ops.Material, ops.Tooling, ops.HeatTreat, ops.Finish, ops.Hardware)
	store.AddParty(customer, entities.Address{
		Line1:   "4400 Launch Complex Rd",
		City:    "Titusville",
		State:   "FL",
		ZipCode: "32780",
		Country: "US",
	})

	eventStore := events.NewInMemoryEventStore(logger)
	_ = eventStore.Subscribe([]string{events.RunProgressEvent}, events.HandlerFunc(func(e events.Event) error {
		if p, ok := e.Data().(events.RunProgress); ok {
			fmt.Printf("⏳ %3d%% %s\n", p.Percent, p.Stage)
		}
		return nil
	}))

	generator, err := generation.NewGenerator(store, eventStore, nil, logger, generation.DefaultOptions())
	if err != nil {
		fmt.Printf("❌ Setup failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("🚀 Generating RFQ for the engine mount assembly...")
	result, err := generator.Generate(ctx, dto.GenerationRequest{
		Records:           engineMountRecords(),
		Customer:          customer,
		CustomerName:      "Orbital Dynamics",
		CustomerRFQNumber: "OD-2026-017",
	})
	if err != nil {
		fmt.Printf("❌ Generation failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println()

	if err := output.WriteGeneration(os.Stdout, output.FormatText, result); err != nil {
		fmt.Printf("❌ Report failed: %v\n", err)
		os.Exit(1)
	}

	// Show the quote tree the way the ERP stores it
	fmt.Println("🌳 Quote Assembly Rows:")
	for _, row := range store.AssemblyRows(result.MainQuote) {
		fmt.Printf("  %+v\n", row)
	}
	fmt.Println()
	fmt.Println("✅ RFQ generation complete!")
}

func engineMountRecords() *entities.PartRecords {
	stock := func(s string) decimal.Decimal { return decimal.RequireFromString(s) }

	records := entities.NewPartRecords(6)
	records.Add(entities.PartRecord{
		PartNumber:       "EM-100",
		Description:      "Engine mount assembly",
		Material:         "TI-6AL-4V",
		FinishCode:       "PASSIVATE\nPRIME",
		HeatTreat:        "STRESS RELIEVE",
		QuantityRequired: 9,
		StockLength:      stock("24"),
		StockWidth:       stock("6"),
		StockThickness:   stock("1.5"),
	})
	records.Add(entities.PartRecord{
		PartNumber:       "EM-110",
		Description:      "Thrust yoke",
		AssyFor:          "EM-100",
		Material:         "AL7075",
		FinishCode:       "ANODIZE",
		QuantityRequired: 2,
	})
	records.Add(entities.PartRecord{
		PartNumber:       "EM-111",
		Description:      "Yoke bushing",
		AssyFor:          "EM-110",
		Material:         "BRONZE",
		QuantityRequired: 4,
	})
	records.Add(entities.PartRecord{
		PartNumber:         "NAS1352-4",
		Description:        "Socket head cap screw",
		AssyFor:            "EM-100",
		HardwareOrSupplies: entities.Hardware,
		QuantityRequired:   16,
	})
	records.Add(entities.PartRecord{
		PartNumber:         "FIX-EM-100",
		Description:        "Drill fixture",
		AssyFor:            "EM-110",
		HardwareOrSupplies: entities.Tooling,
		QuantityRequired:   1,
	})
	return records
}
