package rpc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/fiberkit/runtime/fiber"
)

// maxFrameBytes bounds a single frame's declared length, guarding against
// a corrupt or adversarial peer claiming a multi-gigabyte payload.
const maxFrameBytes = 64 << 20

// writeFrame writes v as [4-byte big-endian length][JSON payload] to conn,
// via the reactor-backed AsyncFD.Write so a slow peer parks the calling
// task instead of blocking its driving worker.
func writeFrame(ctx *fiber.Ctx, conn *fiber.AsyncFD, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(payload)))
	copy(buf[4:], payload)
	_, err = conn.Write(ctx, buf, 0)
	return err
}

// readFrame reads one [4-byte big-endian length][JSON payload] frame from
// conn and unmarshals it into v.
func readFrame(ctx *fiber.Ctx, conn *fiber.AsyncFD, v any) error {
	var hdr [4]byte
	if err := conn.ReadFull(ctx, hdr[:], 0); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > maxFrameBytes {
		return fmt.Errorf("rpc: frame length %d exceeds limit %d", n, maxFrameBytes)
	}
	buf := make([]byte, n)
	if err := conn.ReadFull(ctx, buf, 0); err != nil {
		return err
	}
	return json.Unmarshal(buf, v)
}
