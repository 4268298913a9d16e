// mkfixture generates synthetic 837/835 fixture pairs for testing and load
// work: an 837 with N claims and an 835 that pays or denies each of them.
// Usage: go run ./cmd/mkfixture --claims 50 --deny-rate 0.2 --out-dir testdata
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/nmartin15/claimflow/internal/edi"
	"github.com/nmartin15/claimflow/internal/normalize"
)

var procedures = []string{"99213", "99214", "99212", "80053", "85025", "93000", "71046", "36415"}

var diagnoses = []string{"E11.9", "I10", "J06.9", "M54.5", "K21.9", "F41.1", "Z00.00"}

// denialReasons are CARC codes weighted toward the common ones.
var denialReasons = []string{"29", "29", "97", "50", "16", "197"}

func main() {
	claims := flag.Int("claims", 25, "number of claims to generate")
	denyRate := flag.Float64("deny-rate", 0.2, "fraction of claims denied in the 835")
	outDir := flag.String("out-dir", "testdata", "output directory")
	seed := flag.Int64("seed", 1, "random seed")
	payerID := flag.String("payer", "60054", "payer identifier")
	providerNPI := flag.String("npi", "1234567890", "billing provider NPI")
	flag.Parse()

	if *claims <= 0 {
		fmt.Fprintln(os.Stderr, "--claims must be positive")
		os.Exit(1)
	}
	if *denyRate < 0 || *denyRate > 1 {
		fmt.Fprintln(os.Stderr, "--deny-rate must be within [0, 1]")
		os.Exit(1)
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create output dir: %v\n", err)
		os.Exit(1)
	}

	rng := rand.New(rand.NewSource(*seed))
	gen := &generator{rng: rng, payerID: *payerID, providerNPI: *providerNPI}

	charges := make([]int64, *claims)
	denied := make([]bool, *claims)
	deniedCount := 0
	for i := range charges {
		charges[i] = int64(rng.Intn(4900)+100) * 100
		denied[i] = rng.Float64() < *denyRate
		if denied[i] {
			deniedCount++
		}
	}

	d := edi.DefaultDelimiters()
	claimPath := filepath.Join(*outDir, "claims.edi")
	remitPath := filepath.Join(*outDir, "remits.edi")

	if err := os.WriteFile(claimPath, edi.Serialize(gen.file837(charges), d), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write %s: %v\n", claimPath, err)
		os.Exit(1)
	}
	if err := os.WriteFile(remitPath, edi.Serialize(gen.file835(charges, denied), d), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write %s: %v\n", remitPath, err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %d claims to %s\n", *claims, claimPath)
	fmt.Printf("Wrote %d remittances (%d denied) to %s\n", *claims, deniedCount, remitPath)
}

type generator struct {
	rng         *rand.Rand
	payerID     string
	providerNPI string
}

func seg(id string, elements ...string) edi.Segment {
	return edi.Segment{ID: id, Elements: elements}
}

// isa builds the fixed-width interchange header. ISA16 is the component
// separator; the element widths are mandated by the standard.
func isa(control string) edi.Segment {
	return seg("ISA",
		"00", "          ",
		"00", "          ",
		"ZZ", "SUBMITTERID    ",
		"ZZ", "RECEIVERID     ",
		"240115", "1200",
		"^", "00501",
		control, "0", "P", ":")
}

func (g *generator) file837(charges []int64) []edi.Segment {
	segs := []edi.Segment{
		isa("000000001"),
		seg("GS", "HC", "SUBMITTERID", "RECEIVERID", "20240115", "1200", "1", "X", "005010X222A1"),
	}

	txn := []edi.Segment{
		seg("ST", "837", "0001"),
		seg("BHT", "0019", "00", "REF123", "20240115", "1200", "CH"),
		seg("NM1", "85", "2", "ACME MEDICAL GROUP", "", "", "", "", "XX", g.providerNPI),
		seg("NM1", "PR", "2", "EXAMPLE HEALTH", "", "", "", "", "PI", g.payerID),
		seg("SBR", "P", "18"),
	}

	for i, charge := range charges {
		control := fmt.Sprintf("CLM%04d", i+1)
		dx := diagnoses[g.rng.Intn(len(diagnoses))]
		txn = append(txn,
			seg("CLM", control, normalize.FormatCents(charge), "", "", "11:B:1"),
			seg("DTP", "434", "RD8", "20240110-20240112"),
			seg("HI", "ABK:"+dx),
			seg("REF", "D9", fmt.Sprintf("PAT%04d", i+1)),
		)

		// Split the charge across one to three service lines.
		lines := g.rng.Intn(3) + 1
		remaining := charge
		for ln := 0; ln < lines; ln++ {
			amount := remaining
			if ln < lines-1 {
				amount = remaining / int64(lines-ln)
			}
			remaining -= amount
			proc := procedures[g.rng.Intn(len(procedures))]
			txn = append(txn,
				seg("SV1", "HC:"+proc, normalize.FormatCents(amount), "UN", "1"),
				seg("DTP", "472", "D8", "20240110"),
			)
		}
	}

	txn = append(txn, seg("SE", fmt.Sprintf("%d", len(txn)+1), "0001"))
	segs = append(segs, txn...)
	segs = append(segs,
		seg("GE", "1", "1"),
		seg("IEA", "1", "000000001"),
	)
	return segs
}

func (g *generator) file835(charges []int64, denied []bool) []edi.Segment {
	var total int64
	for i, charge := range charges {
		if !denied[i] {
			total += charge
		}
	}

	segs := []edi.Segment{
		isa("000000002"),
		seg("GS", "HP", g.payerID, "RECEIVERID", "20240120", "0900", "2", "X", "005010X221A1"),
	}

	txn := []edi.Segment{
		seg("ST", "835", "0002"),
		seg("BPR", "I", normalize.FormatCents(total), "C", "ACH", "CCP",
			"01", "999999992", "", "", "1234567890", "",
			"01", "999988880", "DA", "98765", "20240120"),
		seg("TRN", "1", "71700666555", "1935665544"),
		seg("N1", "PR", "EXAMPLE HEALTH", "PI", g.payerID),
		seg("N1", "PE", "ACME MEDICAL GROUP", "XX", g.providerNPI),
	}

	for i, charge := range charges {
		control := fmt.Sprintf("CLM%04d", i+1)
		icn := fmt.Sprintf("ICN%04d", i+1)
		if denied[i] {
			reason := denialReasons[g.rng.Intn(len(denialReasons))]
			txn = append(txn,
				seg("CLP", control, "4", normalize.FormatCents(charge), "0.00", "", "MC", icn),
				seg("CAS", "CO", reason, normalize.FormatCents(charge)),
			)
			continue
		}
		txn = append(txn,
			seg("CLP", control, "1", normalize.FormatCents(charge), normalize.FormatCents(charge), "0.00", "MC", icn),
		)
	}

	txn = append(txn, seg("SE", fmt.Sprintf("%d", len(txn)+1), "0002"))
	segs = append(segs, txn...)
	segs = append(segs,
		seg("GE", "1", "2"),
		seg("IEA", "1", "000000002"),
	)
	return segs
}
