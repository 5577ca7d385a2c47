package engine

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/zpay32"
)

// Bolt11Decoder decodes bolt11 payment requests locally so send records
// can carry the real amount instead of a placeholder.
type Bolt11Decoder struct {
	params *chaincfg.Params
}

func NewBolt11Decoder(network string) (*Bolt11Decoder, error) {
	params, err := networkParams(network)
	if err != nil {
		return nil, err
	}

	return &Bolt11Decoder{params: params}, nil
}

func (d *Bolt11Decoder) DecodeAmount(paymentRequest string) (int64, error) {
	invoice, err := zpay32.Decode(paymentRequest, d.params)
	if err != nil {
		return 0, err
	}

	if invoice.MilliSat == nil {
		return 0, nil
	}

	return int64(*invoice.MilliSat) / 1000, nil
}

func networkParams(network string) (*chaincfg.Params, error) {
	switch network {
	case "", "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet":
		return &chaincfg.TestNet3Params, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "simnet":
		return &chaincfg.SimNetParams, nil
	default:
		return nil, fmt.Errorf("unknown network: %q", network)
	}
}
