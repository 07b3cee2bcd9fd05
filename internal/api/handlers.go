package api

import (
	"net/http"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/regforge/regforge/internal/gateway"
)

func (s *Server) handleEnsureWallet(w http.ResponseWriter, r *http.Request) {
	var req walletRequest
	if err := readJSON(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return
	}
	handle, err := s.registry.Ensure(req.Name)
	if err != nil {
		s.writeFault(w, r, err)
		return
	}
	status := http.StatusOK
	if handle.Created {
		status = http.StatusCreated
	}
	s.writeJSON(w, status, handle)
}

func (s *Server) handleNewAddress(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	if err := readJSON(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return
	}
	addr, err := s.registry.NewAddress(req.Wallet, req.Label)
	if err != nil {
		s.writeFault(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, addr)
}

func (s *Server) handleMine(w http.ResponseWriter, r *http.Request) {
	var req mineRequest
	if err := readJSON(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return
	}
	hashes, err := s.orch.Mine(req.Wallet, req.Address, req.Blocks)
	if err != nil {
		s.writeFault(w, r, err)
		return
	}
	resp := mineResponse{Blocks: make([]string, len(hashes))}
	for i, h := range hashes {
		resp.Blocks[i] = h.String()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	balance, err := s.node.Balance(name)
	if err != nil {
		s.writeFault(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, balanceResponse{Wallet: name, Balance: balance})
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := readJSON(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return
	}
	txid, err := s.orch.Send(req.From, req.To, req.Amount, req.Message)
	if err != nil {
		s.writeFault(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sendResponse{TxID: txid.String()})
}

func (s *Server) handleMempool(w http.ResponseWriter, r *http.Request) {
	entry, err := s.orch.InspectMempool(r.PathValue("txid"))
	if err != nil {
		s.writeFault(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	hash, err := chainhash.NewHashFromStr(r.PathValue("txid"))
	if err != nil {
		s.writeFault(w, r, gateway.WrapFault(gateway.CodeTxNotFound, "gettransaction", err))
		return
	}
	wtx, err := s.node.WalletTransaction(r.PathValue("wallet"), hash)
	if err != nil {
		s.writeFault(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, txResponse{
		TxID:          wtx.TxID,
		Confirmations: wtx.Confirmations,
		BlockHash:     wtx.BlockHash,
		Fee:           wtx.Fee,
		Amount:        wtx.Amount,
		Time:          wtx.Time,
	})
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if err := readJSON(r, &req); err != nil {
		s.writeBadRequest(w, err)
		return
	}
	record, err := s.engine.Reconcile(req.Wallet, req.TxID, req.To)
	if err != nil {
		s.writeFault(w, r, err)
		return
	}
	if err := s.records.Put(record); err != nil {
		s.writeFault(w, r, err)
		return
	}
	if err := s.sink.Write(record); err != nil {
		s.writeFault(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	record, err := s.orch.Run()
	if err != nil {
		s.writeFault(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.records.List()
	if err != nil {
		s.writeFault(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	record, err := s.records.Get(r.PathValue("txid"))
	if err != nil {
		s.writeFault(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}
