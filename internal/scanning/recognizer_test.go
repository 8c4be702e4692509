package scanning

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"

	"github.com/google/generative-ai-go/genai"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

func whiteImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	return img
}

func pngBytes(img image.Image) []byte {
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("prepareImageData", func() {
	It("should pass PNG data through untouched", func() {
		data := pngBytes(whiteImage(4, 4))

		out, converted, err := prepareImageData(data, "image/png")
		Expect(err).NotTo(HaveOccurred())
		Expect(converted).To(BeFalse())
		Expect(out).To(Equal(data))
	})

	It("should convert JPEG data to PNG", func() {
		var buf bytes.Buffer
		Expect(jpeg.Encode(&buf, whiteImage(4, 4), nil)).To(Succeed())

		out, converted, err := prepareImageData(buf.Bytes(), "image/jpeg")
		Expect(err).NotTo(HaveOccurred())
		Expect(converted).To(BeTrue())
		_, format, err := image.Decode(bytes.NewReader(out))
		Expect(err).NotTo(HaveOccurred())
		Expect(format).To(Equal("png"))
	})

	It("should reject data that is not an image", func() {
		_, _, err := prepareImageData([]byte("not an image"), "image/jpeg")
		Expect(err).To(MatchError(ContainSubstring("unsupported image format")))
	})
})

var _ = Describe("preprocessForOCR", func() {
	It("should upscale small screenshots", func() {
		out := preprocessForOCR(whiteImage(300, 600))
		Expect(out.Bounds().Dy()).To(Equal(minOCRHeight))
		Expect(out.Bounds().Dx()).To(Equal(600))
	})

	It("should keep large images at their size", func() {
		out := preprocessForOCR(whiteImage(100, 1500))
		Expect(out.Bounds().Dy()).To(Equal(1500))
	})
})

var _ = Describe("ZXing", func() {
	var decoder *ZXing

	BeforeEach(func() {
		decoder = NewZXing()
	})

	It("should decode a Code 128 barcode", func() {
		matrix, err := oned.NewCode128Writer().Encode("769886563188", gozxing.BarcodeFormat_CODE_128, 400, 120, nil)
		Expect(err).NotTo(HaveOccurred())

		text, err := decoder.DecodeBarcode(pngBytes(matrix), "image/png")
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal("769886563188"))
	})

	It("should report a blank image", func() {
		_, err := decoder.DecodeBarcode(pngBytes(whiteImage(200, 100)), "image/png")
		Expect(err).To(MatchError(ErrNoBarcode))
	})
})

var _ = Describe("Ollama", func() {
	var (
		server     *ghttp.Server
		recognizer *Ollama
		lines      []string
		err        error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		recognizer, err = NewOllama(server.URL()+"/", "qwen2.5vl:7b")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		lines, err = recognizer.RecognizeText(pngBytes(whiteImage(4, 4)), "image/png")
	})

	When("the model returns a transcription", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
				ghttp.VerifyContentType("application/json"),
				func(w http.ResponseWriter, r *http.Request) {
					var req ollamaChatRequest
					Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
					Expect(req.Model).To(Equal("qwen2.5vl:7b"))
					Expect(req.Format).To(Equal("json"))
					Expect(req.Messages).To(HaveLen(2))
					Expect(req.Messages[1].Images).To(HaveLen(1))
				},
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]interface{}{
					"message": map[string]string{
						"role":    "assistant",
						"content": `{"lines": ["교환처", "CU", "유효기간 2025.03.01"]}`,
					},
					"done": true,
				}),
			))
		})

		It("should return the lines", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(lines).To(Equal([]string{"교환처", "CU", "유효기간 2025.03.01"}))
		})
	})

	When("the API fails", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "model not loaded"))
		})

		It("returns the error", func() {
			Expect(err).To(MatchError(ContainSubstring("status 500")))
		})
	})

	When("the model answers with prose", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]interface{}{
				"message": map[string]string{"role": "assistant", "content": "I cannot read this image."},
				"done":    true,
			}))
		})

		It("returns the error", func() {
			Expect(err).To(MatchError(ContainSubstring("parsing transcription")))
		})
	})
})

var _ = Describe("NewGemini", func() {
	It("should require an API key", func() {
		_, err := NewGemini("", "")
		Expect(err).To(MatchError(ContainSubstring("api key is required")))
	})
})

var _ = Describe("candidateText", func() {
	It("should join the text parts of the first candidate", func() {
		resp := &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []genai.Part{
					genai.Text(`{"lines": [`),
					genai.Text(`"GS25"]}`),
				}},
			}},
		}
		text, err := candidateText(resp)
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal(`{"lines": ["GS25"]}`))
	})

	It("should fail without candidates", func() {
		_, err := candidateText(&genai.GenerateContentResponse{})
		Expect(err).To(MatchError(errEmptyGeminiResponse))
	})
})

var _ = Describe("NewTesseract", func() {
	It("should default to Korean and English", func() {
		t, err := NewTesseract(nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(t.languages).To(Equal([]string{"kor", "eng"}))
	})
})

var _ = Describe("NewRecognizer", func() {
	It("should default to Tesseract", func() {
		r, err := NewRecognizer(Config{})
		Expect(err).NotTo(HaveOccurred())
		Expect(r).To(BeAssignableToTypeOf(&Tesseract{}))
	})

	It("should split Tesseract languages", func() {
		r, err := NewRecognizer(Config{Type: "tesseract", TesseractLanguages: "kor+eng+jpn"})
		Expect(err).NotTo(HaveOccurred())
		Expect(r.(*Tesseract).languages).To(Equal([]string{"kor", "eng", "jpn"}))
	})

	It("should build an Ollama recognizer", func() {
		r, err := NewRecognizer(Config{Type: "ollama"})
		Expect(err).NotTo(HaveOccurred())
		Expect(r.(*Ollama).baseURL).To(Equal("http://localhost:11434"))
	})

	It("should reject unknown types", func() {
		_, err := NewRecognizer(Config{Type: "paddle"})
		Expect(err).To(MatchError(ContainSubstring("invalid scanner type")))
	})
})
