package extraction

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// testImage builds a solid gray image of the given size
func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.Gray{Y: 128})
		}
	}
	return img
}

func decodeSize(data []byte) (int, int) {
	img, err := png.Decode(bytes.NewReader(data))
	Expect(err).NotTo(HaveOccurred())
	return img.Bounds().Dx(), img.Bounds().Dy()
}

var _ = Describe("preparePasses", func() {
	When("given a PNG receipt", func() {
		var p *passes

		BeforeEach(func() {
			data, err := encodePNG(testImage(100, 200))
			Expect(err).NotTo(HaveOccurred())

			p, err = preparePasses(data, "image/png", 1200)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should keep the full pass at the original size", func() {
			w, h := decodeSize(p.full)
			Expect(w).To(Equal(100))
			Expect(h).To(Equal(200))
		})

		It("should produce a half pass below the vertical midpoint", func() {
			w, h := decodeSize(p.half)
			Expect(w).To(Equal(100))
			Expect(h).To(Equal(100))
		})
	})

	When("given corrupt bytes", func() {
		It("should return an error", func() {
			_, err := preparePasses([]byte("junk"), "image/png", 1200)
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("downscale", func() {
	It("should cap the longest edge of a landscape image", func() {
		out := downscale(testImage(2400, 1200), 1200)
		Expect(out.Bounds().Dx()).To(Equal(1200))
		Expect(out.Bounds().Dy()).To(Equal(600))
	})

	It("should cap the longest edge of a portrait image", func() {
		out := downscale(testImage(900, 3000), 1200)
		Expect(out.Bounds().Dx()).To(Equal(360))
		Expect(out.Bounds().Dy()).To(Equal(1200))
	})

	It("should pass through images already within bounds", func() {
		img := testImage(800, 600)
		Expect(downscale(img, 1200)).To(BeIdenticalTo(img))
	})
})

var _ = Describe("lowerHalf", func() {
	It("should split at the vertical midpoint", func() {
		out := lowerHalf(testImage(50, 101))
		Expect(out.Bounds().Dx()).To(Equal(50))
		Expect(out.Bounds().Dy()).To(Equal(51))
	})
})

var _ = Describe("isHEICFormat", func() {
	It("should recognize the heic brand in the ftyp box", func() {
		data := append([]byte{0, 0, 0, 24}, []byte("ftypheic")...)
		data = append(data, make([]byte, 8)...)
		Expect(isHEICFormat(data)).To(BeTrue())
	})

	It("should reject PNG data", func() {
		data, err := encodePNG(testImage(4, 4))
		Expect(err).NotTo(HaveOccurred())
		Expect(isHEICFormat(data)).To(BeFalse())
	})

	It("should reject short inputs", func() {
		Expect(isHEICFormat([]byte("tiny"))).To(BeFalse())
	})
})
