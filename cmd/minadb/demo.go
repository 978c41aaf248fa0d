package main

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/joacominatel/minadb/internal/cursor"
	"github.com/joacominatel/minadb/internal/database/memory"
)

// demoDatabase is the memory database name that comes with sample data.
const demoDatabase = "demo"

func seedDemo(d *memory.Driver) error {
	if err := d.CreateTable(memory.TableDef{
		Name: "CUSTOMERS",
		Columns: []memory.ColumnDef{
			{Name: "ID", Type: cursor.TypeInteger, Size: 4},
			{Name: "EMAIL", Type: cursor.TypeVarChar, Size: 64},
			{Name: "NAME", Type: cursor.TypeVarChar, Size: 40, Nullable: true},
			{Name: "EXTERNAL_ID", Type: cursor.TypeGuid, Size: 16},
		},
		PrimaryKey: []string{"ID"},
		Unique:     []string{"EMAIL"},
	}); err != nil {
		return err
	}

	if err := d.CreateTable(memory.TableDef{
		Name: "ORDERS",
		Columns: []memory.ColumnDef{
			{Name: "ID", Type: cursor.TypeInteger, Size: 4},
			{Name: "CUSTOMER_ID", Type: cursor.TypeInteger, Size: 4},
			{Name: "PLACED_AT", Type: cursor.TypeTimestamp, Size: 8},
			{Name: "NET", Type: cursor.TypeDecimal, Size: 17, Precision: 12, Scale: -2},
			{
				Name:      "GROSS",
				Type:      cursor.TypeDecimal,
				Size:      17,
				Precision: 12,
				Scale:     -2,
				Computed:  "NET * 1.21",
				Generate: func(row []any) any {
					net, ok := row[3].(decimal.Decimal)
					if !ok {
						return nil
					}
					return net.Mul(decimal.RequireFromString("1.21")).Round(2)
				},
			},
			{Name: "NOTE", Type: cursor.TypeText, Nullable: true},
		},
		PrimaryKey: []string{"ID"},
	}); err != nil {
		return err
	}

	if err := d.Insert("customers",
		[]any{1, "ada@example.com", "Ada", uuid.NewSHA1(uuid.NameSpaceURL, []byte("ada"))},
		[]any{2, "linus@example.com", nil, uuid.NewSHA1(uuid.NameSpaceURL, []byte("linus"))},
	); err != nil {
		return err
	}

	placed := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	if err := d.Insert("orders",
		[]any{10, 1, placed, "120.50", nil, "gift wrap"},
		[]any{11, 1, placed.Add(26 * time.Hour), "9.99", nil, nil},
		[]any{12, 2, placed.Add(72 * time.Hour), "43", nil, nil},
	); err != nil {
		return err
	}

	d.RegisterProcedure("customer_orders", memory.Procedure{
		Columns: []memory.ColumnDef{
			{Name: "ORDER_COUNT", Type: cursor.TypeInteger, Size: 4},
		},
		Run: func(args []any) ([]any, error) {
			if len(args) != 1 {
				return nil, errors.New("customer_orders expects a customer id")
			}
			id, err := cast.ToIntE(args[0])
			if err != nil {
				return nil, err
			}
			counts := map[int]int{1: 2, 2: 1}
			return []any{counts[id]}, nil
		},
	})
	return nil
}
