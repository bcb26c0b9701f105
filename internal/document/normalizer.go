package document

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	"github.com/jung-kurt/gofpdf"

	// 注册标准库和扩展的图片解码器
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// Normalizer 图片规范化器
// 把支持的栅格图片转换成单页PDF，供后续提取流程统一处理
type Normalizer struct {
	// 嵌入PDF时的JPEG质量(1-100)
	JPEGQuality int
	// 嵌入PDF时假定的图片分辨率(DPI)，决定页面物理尺寸
	Resolution float64
}

// NewNormalizer 创建一个使用默认参数的图片规范化器
func NewNormalizer() *Normalizer {
	return &Normalizer{
		JPEGQuality: 90,
		Resolution:  100,
	}
}

// ToPDF 把图片字节转换成单页PDF字节
// 非RGB色彩模式（调色板、带透明通道）先合成到白色背景上，
// 因为下游提取假定页面是可渲染的；损坏的图片返回ConversionError
func (n *Normalizer) ToPDF(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &ConversionError{Reason: "failed to decode image", Err: err}
	}

	// 合成到白色RGB背景，去掉透明通道和调色板模式
	bounds := img.Bounds()
	rgb := image.NewRGBA(bounds)
	draw.Draw(rgb, bounds, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(rgb, bounds, img, bounds.Min, draw.Over)

	// 重新编码为JPEG以便嵌入PDF
	var jpegBuf bytes.Buffer
	if err := jpeg.Encode(&jpegBuf, rgb, &jpeg.Options{Quality: n.JPEGQuality}); err != nil {
		return nil, &ConversionError{Reason: "failed to re-encode image", Err: err}
	}

	// 页面尺寸按分辨率换算成点(1英寸=72点)
	widthPt := float64(bounds.Dx()) * 72.0 / n.Resolution
	heightPt := float64(bounds.Dy()) * 72.0 / n.Resolution
	if widthPt <= 0 || heightPt <= 0 {
		return nil, &ConversionError{Reason: "image has empty dimensions"}
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: widthPt, Ht: heightPt},
	})
	pdf.AddPage()

	opts := gofpdf.ImageOptions{ImageType: "JPG"}
	pdf.RegisterImageOptionsReader("page", opts, &jpegBuf)
	pdf.ImageOptions("page", 0, 0, widthPt, heightPt, false, opts, 0, "")

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, &ConversionError{Reason: "failed to build pdf container", Err: err}
	}

	return out.Bytes(), nil
}
