package reports

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleSale() Record {
	return Record{
		TaxID:        "00112233445",
		IDType:       IDTypeCedula,
		FiscalNumber: "B0100000001",
		TypeCode:     "01",
		Date:         time.Date(2025, time.March, 15, 10, 30, 0, 0, time.UTC),
		Amount:       dec("250.00"),
		TaxAmount:    dec("36.00"),
	}
}

func TestSerializeHeader(t *testing.T) {
	text, err := Serialize(Type607, "131246789", Period{Year: 2025, Month: time.March}, nil)
	require.NoError(t, err)
	// The issuer RNC is zero-padded to 11 digits.
	require.Equal(t, "607|00131246789|202503\r\n", text)
}

func TestSerialize607Line(t *testing.T) {
	text, err := Serialize(Type607, "00131246789", Period{Year: 2025, Month: time.March}, []Record{sampleSale()})
	require.NoError(t, err)

	lines := strings.Split(text, "\r\n")
	require.Len(t, lines, 3)
	require.Empty(t, lines[2])
	require.Equal(t, "00112233445|2|B0100000001|01|20250315|000000025000|000000003600|000000000000|000000000000", lines[1])
}

func TestSerialize606Line(t *testing.T) {
	rec := Record{
		TaxID:        "00198765432",
		IDType:       IDTypeCedula,
		FiscalNumber: "B1100000004",
		TypeCode:     "02",
		Date:         time.Date(2025, time.March, 2, 0, 0, 0, 0, time.UTC),
		Amount:       dec("1000.00"),
		TaxAmount:    dec("180.00"),
	}
	text, err := Serialize(Type606, "00131246789", Period{Year: 2025, Month: time.March}, []Record{rec})
	require.NoError(t, err)

	lines := strings.Split(text, "\r\n")
	require.Equal(t, "00198765432|2|02|B1100000004|20250302|000000100000|000000018000|000000000000|000000000000", lines[1])
}

func TestSerialize608Line(t *testing.T) {
	rec := Record{
		FiscalNumber: "B0100000009",
		TypeCode:     "04",
		Date:         time.Date(2025, time.March, 20, 16, 45, 0, 0, time.UTC),
	}
	text, err := Serialize(Type608, "00131246789", Period{Year: 2025, Month: time.March}, []Record{rec})
	require.NoError(t, err)

	lines := strings.Split(text, "\r\n")
	require.Equal(t, "B0100000009|20250320|04", lines[1])
}

func TestMoneyCentsRoundsHalfUp(t *testing.T) {
	require.Equal(t, "000000000150", moneyCents(dec("1.495")))
	require.Equal(t, "000000000149", moneyCents(dec("1.494")))
	require.Equal(t, "000000000000", moneyCents(decimal.Zero))
	require.Equal(t, "000012345678", moneyCents(dec("123456.78")))
}

func TestSerializeIsByteIdenticalAcrossRuns(t *testing.T) {
	records := []Record{sampleSale()}
	period := Period{Year: 2025, Month: time.March}

	first, err := Serialize(Type607, "00131246789", period, records)
	require.NoError(t, err)
	second, err := Serialize(Type607, "00131246789", period, records)
	require.NoError(t, err)
	require.Equal(t, []byte(first), []byte(second))
}

func TestSerializeRejectsUnknownType(t *testing.T) {
	_, err := Serialize("609", "00131246789", Period{Year: 2025, Month: time.March}, []Record{sampleSale()})
	require.ErrorIs(t, err, ErrUnknownReportType)
}

func TestFoldASCII(t *testing.T) {
	require.Equal(t, "Jose Perez", foldASCII("José Pérez"))
	require.Equal(t, "B0100000001", foldASCII("B0100000001"))
}

func TestFileName(t *testing.T) {
	require.Equal(t, "606_202503.txt", FileName(Type606, Period{Year: 2025, Month: time.March}))
	require.Equal(t, "608_202512.txt", FileName(Type608, Period{Year: 2025, Month: time.December}))
}
