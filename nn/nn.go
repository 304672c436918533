// Package nn implements a two layer binary image classifier trained with
// hand-written forward and backward propagation.
//
// Data is laid out one example per column: X is (n_x, m), labels Y are (1, m).
// The network computes
//
//	Z1 = W1·X + b1      A1 = g(Z1)        (g = ReLU by default)
//	Z2 = W2·A1 + b2     A2 = sigmoid(Z2)
//
// and is trained by full-batch gradient descent on the binary cross-entropy
// cost. A probability strictly greater than 0.5 predicts class 1.
//
// Example usage:
//
//	network, _ := nn.NewNetwork(nn.DefaultDims(), nn.ActivationReLU, nn.InitSmall, 1)
//	result, _ := network.Train(ctx, trainX, trainY, nn.DefaultTrainingConfig())
//	_, labels, _ := network.Predict(testX)
//	acc, _ := nn.Accuracy(labels, testY)
package nn
