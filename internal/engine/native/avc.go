package native

import (
	"encoding/binary"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/pkg/errors"
)

// isAnnexB reports whether b starts with an H.264 start code.
func isAnnexB(b []byte) bool {
	if len(b) >= 4 && b[0] == 0 && b[1] == 0 && b[2] == 0 && b[3] == 1 {
		return true
	}
	return len(b) >= 3 && b[0] == 0 && b[1] == 0 && b[2] == 1
}

// toAVCC converts an Annex-B access unit to length-prefixed NAL units.
// Payloads already in AVCC form are returned unchanged.
func toAVCC(payload []byte) ([]byte, error) {
	if !isAnnexB(payload) {
		return payload, nil
	}
	var au h264.AnnexB
	if err := au.Unmarshal(payload); err != nil {
		return nil, errors.Wrap(err, "parsing Annex-B access unit")
	}
	out, err := h264.AVCC(au).Marshal()
	if err != nil {
		return nil, errors.Wrap(err, "encoding AVCC access unit")
	}
	return out, nil
}

// parameterSets extracts the first SPS and PPS from codec extradata, which
// is either an avcC record or Annex-B NAL units.
func parameterSets(extra []byte) (sps, pps []byte, err error) {
	if len(extra) == 0 {
		return nil, nil, errors.New("no codec extradata")
	}
	if extra[0] == 1 {
		sps, pps, ok := parseAVCDecoderConfig(extra)
		if !ok {
			return nil, nil, errors.New("malformed avcC record")
		}
		return sps, pps, nil
	}

	var nalus h264.AnnexB
	if err := nalus.Unmarshal(extra); err != nil {
		return nil, nil, errors.Wrap(err, "parsing Annex-B extradata")
	}
	for _, nalu := range nalus {
		if len(nalu) == 0 {
			continue
		}
		switch h264.NALUType(nalu[0] & 0x1f) {
		case h264.NALUTypeSPS:
			if sps == nil {
				sps = nalu
			}
		case h264.NALUTypePPS:
			if pps == nil {
				pps = nalu
			}
		}
	}
	if sps == nil || pps == nil {
		return nil, nil, errors.New("extradata lacks SPS or PPS")
	}
	return sps, pps, nil
}

// parseAVCDecoderConfig reads the first SPS and PPS of an avcC record.
func parseAVCDecoderConfig(avcc []byte) (sps, pps []byte, ok bool) {
	if len(avcc) < 7 || avcc[0] != 1 {
		return nil, nil, false
	}
	i := 5
	numSPS := int(avcc[i] & 0x1f)
	i++
	for n := 0; n < numSPS; n++ {
		if i+2 > len(avcc) {
			return nil, nil, false
		}
		l := int(binary.BigEndian.Uint16(avcc[i:]))
		i += 2
		if i+l > len(avcc) {
			return nil, nil, false
		}
		if sps == nil && l > 0 {
			sps = append([]byte(nil), avcc[i:i+l]...)
		}
		i += l
	}
	if i >= len(avcc) {
		return nil, nil, false
	}
	numPPS := int(avcc[i])
	i++
	for n := 0; n < numPPS; n++ {
		if i+2 > len(avcc) {
			return nil, nil, false
		}
		l := int(binary.BigEndian.Uint16(avcc[i:]))
		i += 2
		if i+l > len(avcc) {
			return nil, nil, false
		}
		if pps == nil && l > 0 {
			pps = append([]byte(nil), avcc[i:i+l]...)
		}
		i += l
	}
	return sps, pps, sps != nil && pps != nil
}

// avcDecoderConfig builds an avcC record with one SPS and one PPS and
// 4-byte NAL lengths.
func avcDecoderConfig(sps, pps []byte) []byte {
	out := make([]byte, 0, 11+len(sps)+len(pps))
	out = append(out, 1, sps[1], sps[2], sps[3], 0xff, 0xe1)
	out = binary.BigEndian.AppendUint16(out, uint16(len(sps)))
	out = append(out, sps...)
	out = append(out, 1)
	out = binary.BigEndian.AppendUint16(out, uint16(len(pps)))
	return append(out, pps...)
}

// stripADTS removes an ADTS header so the payload is a raw AAC frame.
func stripADTS(data []byte) []byte {
	if len(data) < 7 || data[0] != 0xff || data[1]&0xf0 != 0xf0 {
		return data
	}
	headerLen := 7
	if data[1]&0x01 == 0 {
		headerLen = 9
	}
	if len(data) <= headerLen {
		return data
	}
	return data[headerLen:]
}
