//go:build cgo && libvpx

package vpx

/*
#cgo pkg-config: vpx
#include <stdlib.h>
#include <string.h>
#include <vpx/vpx_encoder.h>
#include <vpx/vp8cx.h>

static vpx_codec_iface_t *vp8_iface(void) { return vpx_codec_vp8_cx(); }
static vpx_codec_iface_t *vp9_iface(void) { return vpx_codec_vp9_cx(); }

static vpx_codec_err_t enc_init(vpx_codec_ctx_t *ctx, vpx_codec_iface_t *iface,
                                const vpx_codec_enc_cfg_t *cfg, vpx_codec_flags_t flags) {
    return vpx_codec_enc_init(ctx, iface, cfg, flags);
}

static void set_config(vpx_codec_enc_cfg_t *cfg,
                       unsigned int usage, unsigned int threads, unsigned int profile,
                       unsigned int w, unsigned int h,
                       int bit_depth, unsigned int input_bit_depth,
                       int tb_num, int tb_den,
                       unsigned int error_resilient, int pass, unsigned int lag,
                       int end_usage, unsigned int bitrate,
                       unsigned int kf_min, unsigned int kf_max) {
    cfg->g_usage = usage;
    cfg->g_threads = threads;
    cfg->g_profile = profile;
    cfg->g_w = w;
    cfg->g_h = h;
    cfg->g_bit_depth = (vpx_bit_depth_t)bit_depth;
    cfg->g_input_bit_depth = input_bit_depth;
    cfg->g_timebase.num = tb_num;
    cfg->g_timebase.den = tb_den;
    cfg->g_error_resilient = error_resilient;
    cfg->g_pass = (enum vpx_enc_pass)pass;
    cfg->g_lag_in_frames = lag;
    cfg->rc_end_usage = (enum vpx_rc_mode)end_usage;
    cfg->rc_target_bitrate = bitrate;
    cfg->kf_min_dist = kf_min;
    cfg->kf_max_dist = kf_max;
}

static int cfg_bit_depth(const vpx_codec_enc_cfg_t *cfg) { return (int)cfg->g_bit_depth; }
static int cfg_pass(const vpx_codec_enc_cfg_t *cfg) { return (int)cfg->g_pass; }
static int cfg_end_usage(const vpx_codec_enc_cfg_t *cfg) { return (int)cfg->rc_end_usage; }

static vpx_codec_err_t control(vpx_codec_ctx_t *ctx, int id, int value) {
    switch (id) {
    case 1: return vpx_codec_control(ctx, VP8E_SET_CPUUSED, value);
    case 2: return vpx_codec_control(ctx, VP8E_SET_SCREEN_CONTENT_MODE, (unsigned int)value);
    case 3: return vpx_codec_control(ctx, VP9E_SET_TARGET_LEVEL, (unsigned int)value);
    case 4: return vpx_codec_control(ctx, VP9E_SET_LOSSLESS, (unsigned int)value);
    case 5: return vpx_codec_control(ctx, VP9E_SET_TUNE_CONTENT, value);
    default: return VPX_CODEC_INVALID_PARAM;
    }
}

static int pkt_kind(const vpx_codec_cx_pkt_t *pkt) { return (int)pkt->kind; }
static void *pkt_buf(const vpx_codec_cx_pkt_t *pkt) { return pkt->data.frame.buf; }
static size_t pkt_sz(const vpx_codec_cx_pkt_t *pkt) { return pkt->data.frame.sz; }
static vpx_codec_pts_t pkt_pts(const vpx_codec_cx_pkt_t *pkt) { return pkt->data.frame.pts; }
static unsigned long pkt_duration(const vpx_codec_cx_pkt_t *pkt) { return pkt->data.frame.duration; }
static unsigned int pkt_flags(const vpx_codec_cx_pkt_t *pkt) { return (unsigned int)pkt->data.frame.flags; }

static unsigned char *img_plane(vpx_image_t *img, int i) { return img->planes[i]; }
static int img_stride(vpx_image_t *img, int i) { return img->stride[i]; }
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/sirupsen/logrus"
)

type libvpx struct {
	name      string
	bitstream Bitstream
	iface     *C.vpx_codec_iface_t
}

var (
	vp8Once sync.Once
	vp8     Interface
	vp9Once sync.Once
	vp9     Interface
)

// VP8 returns the libvpx VP8 encoder interface, or nil when libvpx was built
// without it.
func VP8() Interface {
	vp8Once.Do(func() {
		if iface := C.vp8_iface(); iface != nil {
			vp8 = &libvpx{name: "libvpx-vp8", bitstream: BitstreamVP8, iface: iface}
		}
	})
	return vp8
}

// VP9 returns the libvpx VP9 encoder interface, or nil when libvpx was built
// without it.
func VP9() Interface {
	vp9Once.Do(func() {
		if iface := C.vp9_iface(); iface != nil {
			vp9 = &libvpx{name: "libvpx-vp9", bitstream: BitstreamVP9, iface: iface}
		}
	})
	return vp9
}

func (l *libvpx) Name() string {
	return l.name
}

func (l *libvpx) Bitstream() Bitstream {
	return l.bitstream
}

func (l *libvpx) DefaultConfig() (EncoderConfig, error) {
	var cfg C.vpx_codec_enc_cfg_t
	if res := C.vpx_codec_enc_config_default(l.iface, &cfg, 0); res != C.VPX_CODEC_OK {
		return EncoderConfig{}, newError(CodecError(res), "")
	}
	return fromNativeConfig(&cfg), nil
}

func (l *libvpx) Init(cfg EncoderConfig, flags CodecFlags) (Context, error) {
	ncfg := (*C.vpx_codec_enc_cfg_t)(C.calloc(1, C.sizeof_vpx_codec_enc_cfg_t))
	if ncfg == nil {
		return nil, newError(CodecMemError, "")
	}
	if res := C.vpx_codec_enc_config_default(l.iface, ncfg, 0); res != C.VPX_CODEC_OK {
		C.free(unsafe.Pointer(ncfg))
		return nil, newError(CodecError(res), "")
	}
	C.set_config(ncfg,
		C.uint(cfg.Usage), C.uint(cfg.Threads), C.uint(cfg.Profile),
		C.uint(cfg.Width), C.uint(cfg.Height),
		C.int(cfg.BitDepth), C.uint(cfg.InputBitDepth),
		C.int(cfg.TimeBase.Num), C.int(cfg.TimeBase.Den),
		C.uint(cfg.ErrorResilient), C.int(cfg.Pass), C.uint(cfg.LagInFrames),
		C.int(cfg.EndUsage), C.uint(cfg.TargetBitrate),
		C.uint(cfg.KFMinDist), C.uint(cfg.KFMaxDist))

	ctx := (*C.vpx_codec_ctx_t)(C.calloc(1, C.sizeof_vpx_codec_ctx_t))
	if ctx == nil {
		C.free(unsafe.Pointer(ncfg))
		return nil, newError(CodecMemError, "")
	}

	if res := C.enc_init(ctx, l.iface, ncfg, C.vpx_codec_flags_t(flags)); res != C.VPX_CODEC_OK {
		err := newError(CodecError(res), errorDetail(ctx))
		C.free(unsafe.Pointer(ctx))
		C.free(unsafe.Pointer(ncfg))
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function": "libvpx.Init",
		"backend":  l.name,
		"width":    cfg.Width,
		"height":   cfg.Height,
	}).Debug("libvpx encoder context created")

	return &libvpxContext{ctx: ctx, cfg: ncfg}, nil
}

func (l *libvpx) AllocImage(format ImgFmt, width, height, align int) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, errInvalidDimensions(width, height)
	}

	nimg := C.vpx_img_alloc(nil, C.vpx_img_fmt_t(format), C.uint(width), C.uint(height), C.uint(align))
	if nimg == nil {
		return nil, fmt.Errorf("%w: vpx_img_alloc failed for %s %dx%d", CodecMemError, format, width, height)
	}

	img := &Image{
		Format:   format,
		Width:    width,
		Height:   height,
		BitDepth: int(nimg.bit_depth),
	}
	for i := 0; i < format.PlaneCount(); i++ {
		stride := int(C.img_stride(nimg, C.int(i)))
		rows := img.PlaneRows(i)
		plane := unsafe.Slice((*byte)(unsafe.Pointer(C.img_plane(nimg, C.int(i)))), stride*rows)
		img.Planes = append(img.Planes, plane)
		img.Stride = append(img.Stride, stride)
	}
	nativeImages.Store(img, nimg)
	img.release = func() {
		nativeImages.Delete(img)
		C.vpx_img_free(nimg)
	}
	return img, nil
}

// nativeImages maps Go images to their vpx_image_t so Encode can find it
// without storing a C pointer inside Image.
var nativeImages sync.Map

type libvpxContext struct {
	ctx *C.vpx_codec_ctx_t
	cfg *C.vpx_codec_enc_cfg_t
	out packetList
}

func (c *libvpxContext) Control(id ControlID, value int) error {
	if c.ctx == nil {
		return ErrDestroyed
	}
	res := C.control(c.ctx, C.int(id), C.int(value))
	return newError(CodecError(res), errorDetail(c.ctx))
}

func (c *libvpxContext) Encode(img *Image, pts int64, duration uint64, flags EncodeFlags, deadline Deadline) error {
	if c.ctx == nil {
		return ErrDestroyed
	}

	var nimg *C.vpx_image_t
	if img != nil {
		v, ok := nativeImages.Load(img)
		if !ok {
			return fmt.Errorf("%w: image was not allocated by libvpx", CodecInvalidParam)
		}
		nimg = v.(*C.vpx_image_t)
	}

	res := C.vpx_codec_encode(c.ctx, nimg, C.vpx_codec_pts_t(pts), C.ulong(duration),
		C.vpx_enc_frame_flags_t(flags), C.ulong(deadline))

	c.out = c.out[:0]
	var iter C.vpx_codec_iter_t
	for {
		pkt := C.vpx_codec_get_cx_data(c.ctx, &iter)
		if pkt == nil {
			break
		}
		cx := CxPacket{Kind: PacketKind(C.pkt_kind(pkt))}
		if cx.Kind == PacketKindFrame {
			cx.Data = unsafe.Slice((*byte)(C.pkt_buf(pkt)), int(C.pkt_sz(pkt)))
			cx.PTS = int64(C.pkt_pts(pkt))
			cx.Duration = uint64(C.pkt_duration(pkt))
			cx.Flags = FrameFlags(C.pkt_flags(pkt))
		}
		c.out = append(c.out, cx)
	}

	return newError(CodecError(res), errorDetail(c.ctx))
}

func (c *libvpxContext) NextPacket(iter *Iterator) *CxPacket {
	return c.out.next(iter)
}

// GlobalHeaders always returns nil: VP8 has none and fetching the VP9 ones
// crashes current libvpx releases.
func (c *libvpxContext) GlobalHeaders() []byte {
	return nil
}

func (c *libvpxContext) Config() EncoderConfig {
	if c.cfg == nil {
		return EncoderConfig{}
	}
	return fromNativeConfig(c.cfg)
}

func (c *libvpxContext) Destroy() error {
	if c.ctx == nil {
		return ErrDestroyed
	}
	res := C.vpx_codec_destroy(c.ctx)
	C.free(unsafe.Pointer(c.ctx))
	C.free(unsafe.Pointer(c.cfg))
	c.ctx = nil
	c.cfg = nil
	c.out = nil
	return newError(CodecError(res), "")
}

func errorDetail(ctx *C.vpx_codec_ctx_t) string {
	detail := C.vpx_codec_error_detail(ctx)
	if detail == nil {
		return ""
	}
	return C.GoString(detail)
}

func fromNativeConfig(cfg *C.vpx_codec_enc_cfg_t) EncoderConfig {
	return EncoderConfig{
		Usage:          uint(cfg.g_usage),
		Threads:        uint(cfg.g_threads),
		Profile:        uint(cfg.g_profile),
		Width:          uint(cfg.g_w),
		Height:         uint(cfg.g_h),
		BitDepth:       BitDepth(C.cfg_bit_depth(cfg)),
		InputBitDepth:  uint(cfg.g_input_bit_depth),
		TimeBase:       Rational{Num: int(cfg.g_timebase.num), Den: int(cfg.g_timebase.den)},
		ErrorResilient: ErrorResilientFlags(cfg.g_error_resilient),
		Pass:           Pass(C.cfg_pass(cfg)),
		LagInFrames:    uint(cfg.g_lag_in_frames),
		EndUsage:       RateControl(C.cfg_end_usage(cfg)),
		TargetBitrate:  uint(cfg.rc_target_bitrate),
		KFMinDist:      uint(cfg.kf_min_dist),
		KFMaxDist:      uint(cfg.kf_max_dist),
	}
}
