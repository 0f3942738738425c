package engine

import "math/rand"

// The topic bag is a without-replacement draw queue: a shuffled permutation
// of catalog indices that is consumed one index per round and refilled only
// when empty. No topic repeats until the whole catalog has been seen once.

// SanitizeBag drops indices outside [0, topicCount), protecting against a
// persisted bag that outlived a catalog change.
func SanitizeBag(bag []int, topicCount int) []int {
	out := make([]int, 0, len(bag))
	for _, idx := range bag {
		if idx >= 0 && idx < topicCount {
			out = append(out, idx)
		}
	}
	return out
}

// ShuffledBag returns a fresh Fisher-Yates permutation of 0..topicCount.
func ShuffledBag(topicCount int, rng *rand.Rand) []int {
	bag := make([]int, topicCount)
	for i := range bag {
		bag[i] = i
	}
	for i := len(bag) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		bag[i], bag[j] = bag[j], bag[i]
	}
	return bag
}

// DrawTopic pops one index off the bag, reshuffling first if the bag is
// empty. Returns the drawn index and the remaining bag.
func DrawTopic(bag []int, topicCount int, rng *rand.Rand) (int, []int, error) {
	if topicCount == 0 {
		return 0, nil, ErrNoTopics
	}
	bag = SanitizeBag(bag, topicCount)
	if len(bag) == 0 {
		bag = ShuffledBag(topicCount, rng)
	}
	idx := bag[len(bag)-1]
	return idx, bag[:len(bag)-1], nil
}
