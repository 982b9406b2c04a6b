package contracts

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// TokenABI is the subset of the AGT token interface used by agridash.
const TokenABI = `[
  {"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
  {"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"recipient","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"event","name":"Approval","anonymous":false,"inputs":[{"name":"owner","type":"address","indexed":true},{"name":"spender","type":"address","indexed":true},{"name":"value","type":"uint256","indexed":false}]}
]`

// MarketplaceABI is the marketplace contract interface.
const MarketplaceABI = `[
  {"type":"function","name":"getAllProducts","stateMutability":"view","inputs":[],"outputs":[{"internalType":"uint256[]","name":"","type":"uint256[]"}]},
  {"type":"function","name":"acceptBid","stateMutability":"nonpayable","inputs":[{"internalType":"uint256","name":"bidId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"completeBid","stateMutability":"nonpayable","inputs":[{"internalType":"uint256","name":"bidId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"createProduct","stateMutability":"nonpayable","inputs":[{"internalType":"string","name":"name","type":"string"},{"internalType":"uint256","name":"price","type":"uint256"},{"internalType":"string","name":"unit","type":"string"},{"internalType":"uint256","name":"quantity","type":"uint256"},{"internalType":"uint256","name":"stock","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"getProduct","stateMutability":"view","inputs":[{"internalType":"uint256","name":"productId","type":"uint256"}],"outputs":[{"internalType":"struct Marketplace.Product","name":"","type":"tuple","components":[{"internalType":"uint256","name":"id","type":"uint256"},{"internalType":"string","name":"name","type":"string"},{"internalType":"uint256","name":"price","type":"uint256"},{"internalType":"string","name":"unit","type":"string"},{"internalType":"uint256","name":"quantity","type":"uint256"},{"internalType":"uint256","name":"stock","type":"uint256"},{"internalType":"address","name":"farmer","type":"address"}]}]},
  {"type":"function","name":"getOrderDetails","stateMutability":"view","inputs":[{"internalType":"uint256","name":"orderId","type":"uint256"}],"outputs":[{"internalType":"struct Marketplace.Order","name":"","type":"tuple","components":[{"internalType":"uint256","name":"id","type":"uint256"},{"internalType":"uint256","name":"productId","type":"uint256"},{"internalType":"uint256","name":"quantity","type":"uint256"},{"internalType":"uint256","name":"totalPrice","type":"uint256"},{"internalType":"address","name":"buyer","type":"address"},{"internalType":"bool","name":"fulfilled","type":"bool"}]}]},
  {"type":"function","name":"getUserOrders","stateMutability":"view","inputs":[{"internalType":"address","name":"user","type":"address"}],"outputs":[{"internalType":"uint256[]","name":"","type":"uint256[]"}]},
  {"type":"function","name":"getBidDetails","stateMutability":"view","inputs":[{"internalType":"uint256","name":"bidId","type":"uint256"}],"outputs":[{"internalType":"struct Marketplace.Bid","name":"","type":"tuple","components":[{"internalType":"uint256","name":"id","type":"uint256"},{"internalType":"uint256","name":"productId","type":"uint256"},{"internalType":"uint256","name":"amount","type":"uint256"},{"internalType":"address","name":"bidder","type":"address"},{"internalType":"bool","name":"accepted","type":"bool"},{"internalType":"bool","name":"completed","type":"bool"}]}]},
  {"type":"function","name":"getUserBids","stateMutability":"view","inputs":[{"internalType":"address","name":"user","type":"address"}],"outputs":[{"internalType":"uint256[]","name":"","type":"uint256[]"}]},
  {"type":"function","name":"operationFee","stateMutability":"view","inputs":[],"outputs":[{"internalType":"uint256","name":"","type":"uint256"}]},
  {"type":"function","name":"placeOrder","stateMutability":"nonpayable","inputs":[{"internalType":"uint256","name":"productId","type":"uint256"},{"internalType":"uint256","name":"quantity","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"placeBid","stateMutability":"nonpayable","inputs":[{"internalType":"uint256","name":"productId","type":"uint256"},{"internalType":"uint256","name":"amount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"setOperationFee","stateMutability":"nonpayable","inputs":[{"internalType":"uint256","name":"newFee","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"setUserDetails","stateMutability":"nonpayable","inputs":[{"internalType":"string","name":"name","type":"string"},{"internalType":"string","name":"contactInfo","type":"string"}],"outputs":[]},
  {"type":"function","name":"token","stateMutability":"view","inputs":[],"outputs":[{"internalType":"contract IVRC25","name":"","type":"address"}]}
]`

var (
	tokenABI       = mustParseABI("token", TokenABI)
	marketplaceABI = mustParseABI("marketplace", MarketplaceABI)
)

func mustParseABI(name, def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("parsing %s abi: %v", name, err))
	}
	return parsed
}
