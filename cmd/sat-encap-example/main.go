// sat-encap-example segments a run of upper-layer PDUs into frames carrying
// encapsulation headers, puts every frame on the wire, and reassembles the
// PDUs at the receiving side
package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/iti/satlink"
	"github.com/iti/satlink/internal/logging"
	"golang.org/x/exp/rand"
)

func main() {
	pduCount := flag.Int("pdus", 20, "number of PDUs to send")
	maxPdu := flag.Int("max-pdu", 1500, "largest PDU size in bytes")
	frameData := flag.Int("frame", 600, "bytes of data carried by each frame")
	firstSN := flag.Int("sn", 1000, "sequence number of the first frame")
	drop := flag.Int("drop", -1, "index of a frame to lose in transit; none when negative")
	seed := flag.Uint64("seed", 1, "seed of the PDU size generator")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	if err := run(ctx, log, *pduCount, *maxPdu, *frameData, *firstSN, *drop, *seed); err != nil {
		log.Error(ctx, "sat-encap-example failed", logging.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, log logging.Logger, pduCount, maxPdu, frameData, firstSN, drop int, seed uint64) error {
	if pduCount < 1 || maxPdu < 1 || maxPdu > 0xFFFF || frameData < 1 {
		return fmt.Errorf("need at least one PDU, PDU sizes in [1,65535] and a positive frame size")
	}

	rnd := rand.New(rand.NewSource(seed))
	pdus := make([][]byte, pduCount)
	for idx := range pdus {
		pdus[idx] = bytes.Repeat([]byte{byte(idx)}, 1+rnd.Intn(maxPdu))
	}

	frames := segment(pdus, frameData, satlink.NewSequenceNumber10(firstSN))
	log.Info(ctx, "segmented", logging.Int("pdus", len(pdus)), logging.Int("frames", len(frames)))

	rcv := new(reassembler)
	for idx, f := range frames {
		wire := f.wire()
		log.Debug(ctx, "frame", logging.Int("index", idx), logging.String("header", f.header.String()),
			logging.String("wire", hex.EncodeToString(wire[:f.header.GetSerializedSize()])))
		if idx == drop {
			log.Info(ctx, "frame lost", logging.Int("sn", f.header.SequenceNumber().Value()))
			continue
		}
		if err := rcv.receive(wire); err != nil {
			return err
		}
	}

	matched := 0
	for _, pdu := range rcv.pdus {
		for _, sent := range pdus {
			if bytes.Equal(pdu, sent) {
				matched += 1
				break
			}
		}
	}
	log.Info(ctx, "reassembled", logging.Int("pdus", len(rcv.pdus)), logging.Int("intact", matched),
		logging.Int("framesLost", rcv.lost))

	if drop < 0 && matched != len(pdus) {
		return fmt.Errorf("%d of %d PDUs reassembled intact", matched, len(pdus))
	}
	return nil
}
