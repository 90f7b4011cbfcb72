package ledger

import "strings"

// EngineResult is a transaction engine result code as reported by the node,
// e.g. "tesSUCCESS" or "tecNO_ENTRY". The three letter prefix carries the class.
type EngineResult string

// Result codes the marketplace reacts to explicitly.
const (
	TesSUCCESS                       EngineResult = "tesSUCCESS"
	TecNO_ENTRY                      EngineResult = "tecNO_ENTRY"
	TecNO_PERMISSION                 EngineResult = "tecNO_PERMISSION"
	TecINSUFFICIENT_FUNDS            EngineResult = "tecINSUFFICIENT_FUNDS"
	TecINSUFFICIENT_RESERVE          EngineResult = "tecINSUFFICIENT_RESERVE"
	TecEXPIRED                       EngineResult = "tecEXPIRED"
	TecNFTOKEN_BUY_SELL_MISMATCH     EngineResult = "tecNFTOKEN_BUY_SELL_MISMATCH"
	TecCANT_ACCEPT_OWN_NFTOKEN_OFFER EngineResult = "tecCANT_ACCEPT_OWN_NFTOKEN_OFFER"
	TefPAST_SEQ                      EngineResult = "tefPAST_SEQ"
	TefMAX_LEDGER                    EngineResult = "tefMAX_LEDGER"
	TelINSUF_FEE_P                   EngineResult = "telINSUF_FEE_P"
	TemMALFORMED                     EngineResult = "temMALFORMED"
	TerQUEUED                        EngineResult = "terQUEUED"
	TerPRE_SEQ                       EngineResult = "terPRE_SEQ"
)

func (r EngineResult) hasPrefix(p string) bool {
	return strings.HasPrefix(string(r), p)
}

// IsSuccess returns true only for tesSUCCESS
func (r EngineResult) IsSuccess() bool {
	return r == TesSUCCESS
}

// IsTec returns true if this is a tec (claimed cost) code
func (r EngineResult) IsTec() bool {
	return r.hasPrefix("tec")
}

// IsTef returns true if this is a tef (failure) code
func (r EngineResult) IsTef() bool {
	return r.hasPrefix("tef")
}

// IsTel returns true if this is a tel (local error) code
func (r EngineResult) IsTel() bool {
	return r.hasPrefix("tel")
}

// IsTem returns true if this is a tem (malformed) code
func (r EngineResult) IsTem() bool {
	return r.hasPrefix("tem")
}

// IsTer returns true if this is a ter (retry) code
func (r EngineResult) IsTer() bool {
	return r.hasPrefix("ter")
}

// ShouldRetry returns true if the node may still apply the transaction later
func (r EngineResult) ShouldRetry() bool {
	return r.IsTer()
}

// IsApplied returns true if the transaction was applied to the ledger.
// This is true for tesSUCCESS and all tec codes.
func (r EngineResult) IsApplied() bool {
	return r.IsSuccess() || r.IsTec()
}

// IsRejected returns true for preliminary results that guarantee the
// transaction will never be included in a ledger.
func (r EngineResult) IsRejected() bool {
	return r.IsTem() || r.IsTef() || r.IsTel()
}

// Message returns a human-readable message for the result
func (r EngineResult) Message() string {
	switch r {
	case TesSUCCESS:
		return "The transaction was applied. Only final in a validated ledger."
	case TecNO_ENTRY:
		return "No matching entry found."
	case TecNO_PERMISSION:
		return "No permission to perform requested operation."
	case TecINSUFFICIENT_FUNDS:
		return "Not enough funds available to complete requested transaction."
	case TecINSUFFICIENT_RESERVE:
		return "Insufficient reserve to complete requested operation."
	case TecEXPIRED:
		return "Expiration time is passed."
	case TecNFTOKEN_BUY_SELL_MISMATCH:
		return "The buy offer and sell offer do not match."
	case TecCANT_ACCEPT_OWN_NFTOKEN_OFFER:
		return "An NFToken offer cannot be accepted by its owner."
	case TefPAST_SEQ:
		return "This sequence number has already passed."
	case TefMAX_LEDGER:
		return "Ledger sequence too high."
	case TelINSUF_FEE_P:
		return "Fee insufficient."
	case TemMALFORMED:
		return "Malformed transaction."
	case TerQUEUED:
		return "Held until escalated fee drops."
	case TerPRE_SEQ:
		return "Missing/inapplicable prior transaction."
	}
	if r == "" {
		return "No engine result."
	}
	return string(r)
}

func (r EngineResult) String() string {
	return string(r)
}
