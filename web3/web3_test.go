package web3

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
	rapidsnarktypes "github.com/iden3/go-rapidsnark/types"
)

func testProof() *rapidsnarktypes.ZKProof {
	return &rapidsnarktypes.ZKProof{
		Proof: &rapidsnarktypes.ProofData{
			A: []string{"1", "2", "1"},
			B: [][]string{{"3", "4"}, {"5", "6"}},
			C: []string{"7", "8", "1"},
		},
		PubSignals: []string{"100", "200", "3"},
	}
}

func TestFormatProof(t *testing.T) {
	c := qt.New(t)

	p, err := formatProof(testProof())
	c.Assert(err, qt.IsNil)
	c.Assert(p.A[0].String(), qt.Equals, "1")
	c.Assert(p.A[1].String(), qt.Equals, "2")
	// the G2 pairs of B are swapped for the on-ledger verifier
	c.Assert(p.B[0][0].String(), qt.Equals, "4")
	c.Assert(p.B[0][1].String(), qt.Equals, "3")
	c.Assert(p.B[1][0].String(), qt.Equals, "6")
	c.Assert(p.B[1][1].String(), qt.Equals, "5")
	c.Assert(p.C[0].String(), qt.Equals, "7")
	c.Assert(p.Signals[2].String(), qt.Equals, "3")
}

func TestFormatProofRejectsMalformed(t *testing.T) {
	c := qt.New(t)

	_, err := formatProof(nil)
	c.Assert(err, qt.IsNotNil)

	truncated := testProof()
	truncated.Proof.A = []string{"1"}
	_, err = formatProof(truncated)
	c.Assert(err, qt.IsNotNil)

	badSignals := testProof()
	badSignals.PubSignals = []string{"100"}
	_, err = formatProof(badSignals)
	c.Assert(err, qt.IsNotNil)

	notNumeric := testProof()
	notNumeric.Proof.C[0] = "0xzz"
	_, err = formatProof(notNumeric)
	c.Assert(err, qt.IsNotNil)
}

func TestLoadManifest(t *testing.T) {
	c := qt.New(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "contracts.json")

	_, err := LoadManifest(path)
	c.Assert(err, qt.IsNotNil)

	m := DeploymentManifest{
		Verifier:        "0x0000000000000000000000000000000000000001",
		VoterRegistry:   "0x0000000000000000000000000000000000000002",
		ElectionManager: "0x0000000000000000000000000000000000000003",
		VotingSystem:    "0x0000000000000000000000000000000000000004",
	}
	data, err := json.Marshal(m)
	c.Assert(err, qt.IsNil)
	c.Assert(os.WriteFile(path, data, 0o600), qt.IsNil)

	loaded, err := LoadManifest(path)
	c.Assert(err, qt.IsNil)
	c.Assert(loaded.complete(), qt.IsTrue)

	addrs := loaded.Addresses()
	c.Assert(addrs.VotingSystem.Hex(), qt.Equals, "0x0000000000000000000000000000000000000004")
}

func TestIncompleteManifest(t *testing.T) {
	c := qt.New(t)
	m := &DeploymentManifest{Verifier: "0x01"}
	c.Assert(m.complete(), qt.IsFalse)
}
