package witness

import (
	backendwitness "github.com/consensys/gnark/backend/witness"
	"github.com/yourorg/manteia/circuits"
)

// PublicInputs mirrors the circuit's public signals.
type PublicInputs struct {
	Threshold  string `json:"threshold"`  // decimal
	Commitment string `json:"commitment"` // MiMC(revenue, salt), decimal
}

type Bundle struct {
	Full       backendwitness.Witness
	Public     PublicInputs
	Assignment *circuits.RevenueCircuit
}
