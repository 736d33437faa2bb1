package occupancy

// Upscale replicates each working cell into a BlockW x BlockH block of a new
// OutputW x OutputH frame. It never interpolates and never mutates working.
func Upscale(working *Frame) *Frame {
	out := &Frame{Width: OutputW, Height: OutputH, Pix: make([]Color, OutputW*OutputH)}
	for gy := 0; gy < GridH; gy++ {
		for gx := 0; gx < GridW; gx++ {
			c := working.At(gx, gy)
			for dy := 0; dy < BlockH; dy++ {
				row := (gy*BlockH + dy) * OutputW
				for dx := 0; dx < BlockW; dx++ {
					out.Pix[row+gx*BlockW+dx] = c
				}
			}
		}
	}
	return out
}
