package analyzer

import (
	"fmt"
	"image"
	"image/color"
	"runtime"
	"sync"

	"github.com/Arifeenz/paimai-ubi/pkg/models"
	colorful "github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/stat"
)

// metricsCalculator implements MetricsCalculator with pooled buffers and
// strip-parallel pixel scans
type metricsCalculator struct {
	slicePool sync.Pool
	grayPool  sync.Pool
}

// NewMetricsCalculator creates a new metrics calculator
func NewMetricsCalculator() MetricsCalculator {
	return &metricsCalculator{
		slicePool: sync.Pool{
			New: func() interface{} {
				return make([]float64, 0, 1024)
			},
		},
		grayPool: sync.Pool{
			New: func() interface{} {
				return &image.Gray{}
			},
		},
	}
}

// stripResult is the partial sum of one horizontal strip
type stripResult struct {
	lum, sat, r, g, b, gray float64
	clipped, pixelCount     int
}

// CalculateMetrics computes image metrics. Empty images yield zero metrics.
func (mc *metricsCalculator) CalculateMetrics(img image.Image) models.ImageMetrics {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	resolution := fmt.Sprintf("%dx%d", width, height)

	if width == 0 || height == 0 {
		return models.ImageMetrics{Resolution: resolution}
	}

	gray := mc.grayPool.Get().(*image.Gray)
	defer mc.grayPool.Put(gray)
	if cap(gray.Pix) < width*height {
		*gray = *image.NewGray(image.Rect(0, 0, width, height))
	} else {
		gray.Pix = gray.Pix[:width*height]
		gray.Stride = width
		gray.Rect = image.Rect(0, 0, width, height)
	}

	sum := mc.scan(img, gray)
	if sum.pixelCount == 0 {
		return models.ImageMetrics{Resolution: resolution}
	}

	n := float64(sum.pixelCount)
	return models.ImageMetrics{
		LaplacianVar:   mc.laplacianVariance(gray),
		AvgLuminance:   sum.lum / n,
		AvgSaturation:  sum.sat / n,
		ChannelBalance: [3]float64{sum.r / n, sum.g / n, sum.b / n},
		Resolution:     resolution,
		Brightness:     sum.gray / n,
		ClippedRatio:   float64(sum.clipped) / n,
	}
}

// scan walks img in horizontal strips, one goroutine per strip, filling
// gray and accumulating the color sums
func (mc *metricsCalculator) scan(img image.Image, gray *image.Gray) stripResult {
	bounds := img.Bounds()
	height := bounds.Dy()

	numWorkers := runtime.NumCPU()
	if height < numWorkers {
		numWorkers = height
	}
	if numWorkers <= 0 {
		numWorkers = 1
	}
	rowsPerWorker := (height + numWorkers - 1) / numWorkers // ceil division

	results := make(chan stripResult, numWorkers)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		startY := i * rowsPerWorker
		endY := startY + rowsPerWorker
		if endY > height {
			endY = height
		}
		if startY >= endY {
			continue
		}
		wg.Add(1)
		go func(startY, endY int) {
			defer wg.Done()

			var res stripResult
			for y := startY; y < endY; y++ {
				for x := 0; x < bounds.Dx(); x++ {
					c := img.At(bounds.Min.X+x, bounds.Min.Y+y)
					rVal, gVal, bVal, _ := c.RGBA()

					rf := float64(rVal) / 65535.0
					gf := float64(gVal) / 65535.0
					bf := float64(bVal) / 65535.0

					_, s, v := colorful.Color{R: rf, G: gf, B: bf}.Hsv()
					res.sat += s
					res.lum += v
					res.r += rf
					res.g += gf
					res.b += bf

					if isClipped(rVal>>8) || isClipped(gVal>>8) || isClipped(bVal>>8) {
						res.clipped++
					}

					g := color.GrayModel.Convert(c).(color.Gray)
					gray.Pix[y*gray.Stride+x] = g.Y
					res.gray += float64(g.Y)
					res.pixelCount++
				}
			}
			results <- res
		}(startY, endY)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var total stripResult
	for res := range results {
		total.lum += res.lum
		total.sat += res.sat
		total.r += res.r
		total.g += res.g
		total.b += res.b
		total.gray += res.gray
		total.clipped += res.clipped
		total.pixelCount += res.pixelCount
	}
	return total
}

func isClipped(v uint32) bool {
	return v == 0 || v == 255
}

// laplacianVariance returns the variance of the 4-neighbour Laplacian over
// the interior of gray, a standard sharpness proxy
func (mc *metricsCalculator) laplacianVariance(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < 3 || height < 3 {
		return 0
	}

	data := mc.slicePool.Get().([]float64)
	defer func() { mc.slicePool.Put(data[:0]) }()

	if cap(data) < (width-2)*(height-2) {
		data = make([]float64, 0, (width-2)*(height-2))
	}

	// Laplacian kernel: [0, 1, 0; 1, -4, 1; 0, 1, 0]
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			center := float64(gray.GrayAt(x, y).Y)
			top := float64(gray.GrayAt(x, y-1).Y)
			bottom := float64(gray.GrayAt(x, y+1).Y)
			left := float64(gray.GrayAt(x-1, y).Y)
			right := float64(gray.GrayAt(x+1, y).Y)

			data = append(data, -4*center+top+bottom+left+right)
		}
	}

	return stat.Variance(data, nil)
}
