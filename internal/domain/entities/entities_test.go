package entities

import (
	"math/big"
	"testing"
)

func completeNetwork(key string, eid uint32) NetworkConfig {
	return NetworkConfig{
		Key:             key,
		Name:            key,
		ChainID:         11155111,
		RPCURL:          "http://rpc",
		EID:             eid,
		EndpointAddress: "0x6EDCE65403992e310A62460808c4b910D972f10f",
		DVNAddress:      "0x8eebf8b423B73bFCa51a1Db4B7354AA0bFCA9193",
		ExecutorAddress: "0x718B92b5CB0a5552039B593faF724D182A881eDA",
		TokenAddress:    "0x1111111111111111111111111111111111111111",
		ExplorerTxURL:   "https://sepolia.etherscan.io/tx/",
	}
}

func TestNetworkConfig_MissingFields(t *testing.T) {
	n := completeNetwork("sepolia", 40161)
	if !n.Complete() {
		t.Fatalf("expected complete network, missing %v", n.MissingFields())
	}

	n.DVNAddress = " "
	n.EID = 0
	missing := n.MissingFields()
	if len(missing) != 2 || missing[0] != "eid" || missing[1] != "dvnAddress" {
		t.Fatalf("unexpected missing fields %v", missing)
	}
}

func TestNetworkConfig_TxURL(t *testing.T) {
	n := completeNetwork("sepolia", 40161)
	if got := n.TxURL("0xabc"); got != "https://sepolia.etherscan.io/tx/0xabc" {
		t.Fatalf("unexpected tx url %s", got)
	}
	if got := n.TxURL(""); got != "" {
		t.Fatalf("expected empty url, got %s", got)
	}
}

func TestRegistry_DropsIncompleteNetworks(t *testing.T) {
	partial := completeNetwork("arbsep", 40231)
	partial.ExecutorAddress = ""
	r := NewRegistry(
		[]NetworkConfig{completeNetwork("sepolia", 40161), partial},
		[]TokenDescriptor{{ID: "usdt", Addresses: map[string]string{"sepolia": "0x1"}}},
		[]SupportedPair{{Source: "sepolia", Destination: "arbsep"}},
	)

	if _, ok := r.Network("arbsep"); ok {
		t.Fatal("partial network must not be registered")
	}
	if _, ok := r.Network("sepolia"); !ok {
		t.Fatal("expected sepolia registered")
	}
	if n, ok := r.NetworkByEID(40161); !ok || n.Key != "sepolia" {
		t.Fatal("expected lookup by eid")
	}
	if !r.IsSupported("sepolia", "arbsep") || r.IsSupported("arbsep", "sepolia") {
		t.Fatal("pair direction must come from the pair set only")
	}
	if len(r.Networks()) != 1 || len(r.Tokens()) != 1 || len(r.Pairs()) != 1 {
		t.Fatal("unexpected registry listing sizes")
	}

	var nilRegistry *Registry
	if _, ok := nilRegistry.Token("usdt"); ok {
		t.Fatal("nil registry has no tokens")
	}
}

func TestTokenDescriptor_UsableOn(t *testing.T) {
	tok := TokenDescriptor{ID: "eth", Addresses: map[string]string{"sepolia": "0xabc", "arbsep": ""}}
	if !tok.UsableOn("sepolia") {
		t.Fatal("expected usable on sepolia")
	}
	if tok.UsableOn("arbsep") || tok.UsableOn("base") {
		t.Fatal("expected unusable without address")
	}
}

func TestMinAmount_Floor(t *testing.T) {
	cases := map[int64]int64{
		0:       0,
		1:       0,
		99:      98,
		100:     99,
		10001:   9900,
		1000000: 990000,
	}
	for amount, want := range cases {
		got := MinAmount(big.NewInt(amount))
		if got.Int64() != want {
			t.Fatalf("MinAmount(%d) = %s, want %d", amount, got, want)
		}
		if got.Cmp(big.NewInt(amount)) > 0 {
			t.Fatalf("MinAmount(%d) exceeds amount", amount)
		}
	}
	if MinAmount(nil).Sign() != 0 {
		t.Fatal("nil amount must give zero")
	}
}

func TestStage_NormalizeAndRank(t *testing.T) {
	cases := []struct {
		in   Stage
		want Stage
		rank int
	}{
		{"inflight", StageSent, 1},
		{"VERIFIED", StageCommitted, 3},
		{"delivered", StageExecuted, 5},
		{"dvn_verifying", StageDVNVerifying, 2},
		{"executing", StageExecuting, 4},
		{"something-else", StageUnknown, 0},
		{"", StageUnknown, 0},
	}
	for _, tc := range cases {
		if got := tc.in.Normalize(); got != tc.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
		if got := tc.in.Rank(); got != tc.rank {
			t.Fatalf("Rank(%q) = %d, want %d", tc.in, got, tc.rank)
		}
	}
}

func TestTransferStatus_DoneAndDestination(t *testing.T) {
	s := NewTransferStatus("0xsrc")
	if s.Stage != StageUnknown || s.Done() {
		t.Fatal("new status must start unknown")
	}
	s.Stage = StageDelivered
	s.Detail = []StageDetail{
		{Stage: StageSent, Completed: true, TxHash: "0xsrc"},
		{Stage: StageExecuted, Completed: true, TxHash: "0xdst"},
	}
	if !s.Done() {
		t.Fatal("delivered counts as done")
	}
	if s.DestinationTxHash() != "0xdst" {
		t.Fatalf("unexpected destination hash %s", s.DestinationTxHash())
	}
}

func TestMergeStatus_MonotonicAndCommutativeOnStage(t *testing.T) {
	stages := []Stage{StageUnknown, StageSent, StageInflight, StageDVNVerifying, StageVerified, StageCommitted, StageExecuting, StageDelivered, StageExecuted, "bogus"}
	for _, a := range stages {
		for _, b := range stages {
			left := MergeStatus(TransferStatus{Stage: a}, TransferStatus{Stage: b})
			right := MergeStatus(TransferStatus{Stage: b}, TransferStatus{Stage: a})
			if left.Stage != right.Stage {
				t.Fatalf("merge(%s,%s)=%s but merge(%s,%s)=%s", a, b, left.Stage, b, a, right.Stage)
			}
			if left.Stage.Rank() < a.Rank() || left.Stage.Rank() < b.Rank() {
				t.Fatalf("merge(%s,%s) regressed to %s", a, b, left.Stage)
			}
			if again := MergeStatus(left, TransferStatus{Stage: b}); again.Stage != left.Stage {
				t.Fatalf("merge not idempotent for %s,%s", a, b)
			}
		}
	}
}

func TestMergeStatus_TieTakesNewerDetail(t *testing.T) {
	prev := TransferStatus{Stage: StageCommitted, Source: "aggregator"}
	next := TransferStatus{Stage: StageVerified, Source: "onchain", Detail: []StageDetail{{Stage: StageCommitted, TxHash: "0xabc"}}}

	got := MergeStatus(prev, next)
	if got.Source != "onchain" || got.Stage != StageCommitted || len(got.Detail) != 1 {
		t.Fatalf("unexpected merge result %+v", got)
	}

	older := MergeStatus(TransferStatus{Stage: StageExecuted, Source: "scanner"}, TransferStatus{Stage: StageSent, Source: "aggregator"})
	if older.Source != "scanner" || older.Stage != StageExecuted {
		t.Fatalf("lower rank replaced higher: %+v", older)
	}
}

func TestMergeStatus_KeepsKnownDestinationHash(t *testing.T) {
	onchain := TransferStatus{Stage: StageExecuted, Source: "onchain", Detail: []StageDetail{
		{Stage: StageSent, Completed: true, TxHash: "0xsrc"},
		{Stage: StageDelivered, Completed: true, TxHash: "0xdst"},
	}}
	aggregator := TransferStatus{Stage: StageExecuted, Source: "aggregator", Detail: []StageDetail{
		{Stage: StageExecuted, Completed: true},
	}}

	got := MergeStatus(onchain, aggregator)
	if got.Source != "aggregator" || got.Stage != StageExecuted {
		t.Fatalf("tie should take the newer status: %+v", got)
	}
	if got.DestinationTxHash() != "0xdst" {
		t.Fatalf("destination hash lost: %+v", got.Detail)
	}
	if len(aggregator.Detail) != 1 {
		t.Fatalf("merge mutated its input: %+v", aggregator.Detail)
	}

	withHash := aggregator
	withHash.Detail = []StageDetail{{Stage: StageExecuted, TxHash: "0xnew"}}
	if got := MergeStatus(onchain, withHash); got.DestinationTxHash() != "0xnew" || len(got.Detail) != 1 {
		t.Fatalf("newer destination hash should win: %+v", got.Detail)
	}
}
