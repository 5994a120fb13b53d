package trainer

import "fmt"

// progressLine formats one iteration the way each variant reports it.
func progressLine(v Variant, pos position, r Losses) string {
	switch v {
	case VariantDCGAN:
		return fmt.Sprintf("%d [D loss: %f, acc.: %.2f%%] [G loss: %f]", pos.global-1, r.D, 100*r.Acc, r.G)
	case VariantAAE:
		return fmt.Sprintf("%d [D loss: %f, acc: %.2f%%] [G loss: %f, mse: %f]", pos.global-1, r.D, 100*r.Acc, r.G, r.MSE)
	default:
		return fmt.Sprintf("Epoch: [%2d] [%4d/%4d] D_loss: %.8f, G_loss: %.8f", pos.epoch+1, pos.iter+1, pos.batches, r.D, r.G)
	}
}
